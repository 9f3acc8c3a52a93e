package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/submit"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var (
		mediaID  string
		source   string
		baseURL  string
		origin   string
		mode     string
		token    string
		mediaDir string
		timeout  time.Duration
		verbose  bool
		edits    editFlags
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send an edit to the media library",
		Long: `Submit posts an edit to {base-url}/media/{id}/edit. When the source can
be processed locally the rendered file is attached, otherwise only the
crop, rotation, flip and filter parameters are sent.

The bearer token is read from --token or PIXELEDIT_TOKEN.`,
		Example: `  pixeledit submit --media-id 64f1 --url /uploads/cat.jpg --base-url https://cms.example.com/api --origin https://cms.example.com --preset sepia`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := edits.state(cmd)
			if err != nil {
				return err
			}

			processingMode, err := pipeline.ParseProcessingMode(mode)
			if err != nil {
				return err
			}
			policy, err := pipeline.NewOriginPolicy(origin, processingMode)
			if err != nil {
				return err
			}

			if token == "" {
				token = os.Getenv("PIXELEDIT_TOKEN")
			}

			if err := pipeline.Startup(); err != nil {
				return err
			}
			defer pipeline.Shutdown()

			fetcher := pipeline.SourceFetcher{HTTP: pipeline.NewHTTPFetcher(policy, timeout)}
			if mediaDir != "" {
				fetcher.Files = pipeline.LocalFileFetcher{Root: mediaDir}
			}

			adapter, err := submit.NewAdapter(newLogger(cmd, verbose), submit.Config{
				BaseURL: baseURL,
				Timeout: timeout,
				Format:  edits.format,
				Quality: edits.quality,
			}, policy, pipeline.NewProcessor(fetcher, pipeline.NewEncoder()))
			if err != nil {
				return err
			}

			media := domain.MediaReference{ID: mediaID, URL: source}
			updated, outcome, err := adapter.Submit(cmd.Context(), media, state, token)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(map[string]any{"media": updated, "outcome": outcome}); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&mediaID, "media-id", "", "media library id of the image")
	flags.StringVar(&source, "url", "", "source url of the image")
	flags.StringVar(&baseURL, "base-url", "http://localhost:3000/api", "media API base url")
	flags.StringVar(&origin, "origin", "", "application origin used to decide local processing")
	flags.StringVar(&mode, "mode", string(pipeline.ModeOrigin), "local processing mode: origin, always or never")
	flags.StringVar(&token, "token", "", "bearer token (default $PIXELEDIT_TOKEN)")
	flags.StringVar(&mediaDir, "media-dir", "", "serve relative source paths from this directory")
	flags.DurationVar(&timeout, "timeout", submit.DefaultTimeout, "request timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log pipeline decisions to stderr")
	_ = cmd.MarkFlagRequired("media-id")
	_ = cmd.MarkFlagRequired("url")
	edits.register(cmd)

	return cmd
}
