package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/crossbox/internal/ui/report"
)

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List declared targets and the state of their cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := c.app.List(cmd.Context())
			if err != nil {
				return err
			}
			return report.Targets(cmd.OutOrStdout(), statuses)
		},
	}
}
