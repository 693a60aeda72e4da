package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"gcmtool/gcm"
)

func newExtractCmd() *cobra.Command {
	var (
		dest      string
		positions bool
	)

	cmd := &cobra.Command{
		Use:   "extract IMAGE",
		Short: "Extract a disc image into a root directory",
		Long: `Extract unpacks a disc image into DEST/root: system files under
sys/, payload data under files/, and a sidecar config recording the
placement metadata needed to rebuild the same image.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]
			if dest == "" {
				dest = filepath.Dir(imagePath)
			}

			opts := &gcm.ExtractOptions{
				RecordPositions: positions,
				Observer:        &logObserver{},
			}

			log.WithField("dest", filepath.Join(dest, "root")).Info("extracting image")
			if err := gcm.ExtractImage(imagePath, dest, opts); err != nil {
				return err
			}
			log.Info("image extracted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "directory to place the extracted root in (default: next to the image)")
	cmd.Flags().BoolVar(&positions, "positions", false, "record every file's exact offset in the sidecar config")
	return cmd
}
