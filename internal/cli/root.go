// Package cli implements the pixeledit command line: local edits with the
// same crop and filter pipeline the editor uses, and one-shot submission
// to a media backend.
package cli

import (
	"io"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pixeledit",
		Short: "Crop, rotate and filter media library images",
		Long: `pixeledit runs the image editor pipeline from the command line.

Use "apply" to render an edit locally, or "submit" to send an edit to the
media library's /media/{id}/edit endpoint the way the dashboard does.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newSubmitCmd())

	return cmd
}

func newLogger(cmd *cobra.Command, verbose bool) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "[pixeledit] ", log.LstdFlags|log.Lmsgprefix)
}
