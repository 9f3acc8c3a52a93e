package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	var (
		in    string
		out   string
		edits editFlags
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Render an edit of a local image",
		Long: `Apply crops, rotates, flips and filters a local image with the editor
pipeline and writes the result. The crop rectangle is measured in the
rotated image. Pass --out - to write to stdout.`,
		Example: `  pixeledit apply --in cat.jpg --out cat-edited.png --rotate 90 --crop 0,0,400,300 --preset vintage`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := edits.state(cmd)
			if err != nil {
				return err
			}

			format := edits.format
			if format == "" && out != "-" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
			}

			if err := pipeline.Startup(); err != nil {
				return err
			}
			defer pipeline.Shutdown()

			result, err := pipeline.NewLocalProcessor("").Process(cmd.Context(), pipeline.Request{
				Source:  in,
				State:   state,
				Format:  format,
				Quality: edits.quality,
			})
			if err != nil {
				return err
			}

			if out == "-" {
				_, err = cmd.OutOrStdout().Write(result.Data)
				return err
			}
			if err := os.WriteFile(out, result.Data, 0o644); err != nil {
				return fmt.Errorf("write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s %dx%d %s (%d bytes)\n", out, result.Width, result.Height, result.Format, len(result.Data))
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input image path")
	cmd.Flags().StringVar(&out, "out", "", "output image path, or - for stdout")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	edits.register(cmd)

	return cmd
}
