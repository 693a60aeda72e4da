package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gcmtool/gcm"
)

func newBuildCmd() *cobra.Command {
	var (
		dest    string
		newInfo bool
		noPad   bool
	)

	cmd := &cobra.Command{
		Use:   "build ROOT",
		Short: "Build a disc image from an extracted root directory",
		Long: `Build assembles a disc image from a root previously produced by
extract (or by other tooling using the same layout). Placement metadata
is read from the root's sidecar config (sys/.config.json).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir := args[0]

			opts := gcm.DefaultBuildOptions()
			opts.NewInfo = newInfo
			opts.PadToMaxSize = !noPad
			opts.Observer = &logObserver{}

			builder := gcm.NewImageBuilder(rootDir, dest, opts)
			if err := builder.Load(); err != nil {
				return err
			}
			if dest == "" {
				boot := builder.Boot()
				name := fmt.Sprintf("%s [%s].iso", boot.GameName(), boot.GameID())
				dest = filepath.Join(filepath.Dir(strings.TrimRight(rootDir, "/")), name)
				builder = gcm.NewImageBuilder(rootDir, dest, opts)
			}

			log.WithField("dest", dest).Info("building image")
			if err := builder.Build(); err != nil {
				return err
			}
			log.Info("image built")
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "output image path (default: next to the root, named from the boot header)")
	cmd.Flags().BoolVar(&newInfo, "newinfo", false, "overwrite boot header identity fields from the sidecar config")
	cmd.Flags().BoolVar(&noPad, "no-pad", false, "do not pad the image to the platform's full disc size")
	return cmd
}
