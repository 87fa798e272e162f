package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/crossbox/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [target]",
		Short: "Provision one target image, or every declared target",
		Long: "Resolve the image of each target from the local engine or the cache, build it on a miss,\n" +
			"persist fresh builds to the cache and run the downstream procedure against it.\n" +
			"Without a target the whole matrix is processed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			failFast, _ := cmd.Flags().GetBool("fail-fast")
			noPersist, _ := cmd.Flags().GetBool("no-persist")
			noDownstream, _ := cmd.Flags().GetBool("no-downstream")
			bestEffort, _ := cmd.Flags().GetStringSlice("best-effort")
			registry, _ := cmd.Flags().GetString("registry")
			org, _ := cmd.Flags().GetString("org")
			version, _ := cmd.Flags().GetString("version")

			return c.app.Build(cmd.Context(), args, app.BuildOptions{
				Force:        force,
				FailFast:     failFast,
				NoPersist:    noPersist,
				NoDownstream: noDownstream,
				BestEffort:   bestEffort,
				Registry:     registry,
				Organization: org,
				Version:      version,
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Bypass the local image and the cache and rebuild")
	cmd.Flags().Bool("fail-fast", false, "Stop the matrix after the first required target fails")
	cmd.Flags().Bool("no-persist", false, "Do not write freshly built images to the cache")
	cmd.Flags().Bool("no-downstream", false, "Do not run the downstream procedure")
	cmd.Flags().StringSlice("best-effort", nil, "Allow the given target to fail without failing the run (repeatable)")
	cmd.Flags().String("registry", "", "Directory holding the target build descriptions")
	cmd.Flags().String("org", "", "Organization prefix of image names")
	cmd.Flags().String("version", "", "Version tag of the images")
	return cmd
}
