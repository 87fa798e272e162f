package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/crossbox/internal/ui/report"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean cached image archives",
	}
	cmd.AddCommand(c.newCacheListCmd())
	cmd.AddCommand(c.newCacheCleanCmd())
	return cmd
}

func (c *CLI) newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached image archives",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.app.CacheEntries()
			if err != nil {
				return err
			}
			return report.CacheEntries(cmd.OutOrStdout(), entries)
		},
	}
}

func (c *CLI) newCacheCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [targets...]",
		Short: "Remove cached archives of the given targets, or of every target",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			evicted, err := c.app.CleanCache(args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cache entries\n", len(evicted))
			return err
		},
	}
}
