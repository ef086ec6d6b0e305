package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/codespot/internal/batch"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// imageResult is one line of image command output.
type imageResult struct {
	File string `json:"file"`
	pipeline.ResultRecord
	Error string `json:"error,omitempty"`
}

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <file|dir>...",
	Short: "Read codes from image files",
	Long: `Run detection, orientation, reading and validation on local image files
and print one JSON result per file, in the same form as the result files
written for events. Directories are expanded to the images they contain.

Supported formats: JPEG, PNG, BMP

Examples:
  codespot image frame.jpg
  codespot image gate/ --recursive --include 'cam1_*'
  codespot image frame.jpg --pattern '[A-Z]{4}\d{7}' --orientation vertical
  codespot image frame.jpg --recognizer tesseract --min-score 0.6`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts batch.Options
		opts.Recursive, _ = cmd.Flags().GetBool("recursive")
		opts.Include, _ = cmd.Flags().GetStringSlice("include")
		opts.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
		files, err := batch.Discover(args, opts)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("no image files found")
		}

		p, closeRec, err := newPipeline(GetConfig(), logger)
		if err != nil {
			return err
		}
		defer func() { _ = closeRec() }()

		enc := json.NewEncoder(cmd.OutOrStdout())
		res, err := batch.Process(cmd.Context(), p, files, func(it batch.Item) error {
			out := imageResult{File: it.Path, ResultRecord: it.Record}
			if it.Err != nil {
				out.Error = it.Err.Error()
			}
			if it.DetectErr != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: detection failed, result is empty: %v\n", it.Path, it.DetectErr)
			}
			logger.Debug("image processed",
				zap.String("file", it.Path),
				zap.Int("detections", it.Outcome.Detections),
				zap.Int("regions", len(it.Outcome.Regions)),
				zap.Int("codes", len(it.Record.Result)))
			return enc.Encode(out)
		})
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d images failed", res.Failed, len(files))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	imageCmd.Flags().StringSlice("include", nil, "only read files whose name matches one of these globs")
	imageCmd.Flags().StringSlice("exclude", nil, "skip files whose name matches one of these globs")
	imageCmd.Flags().String("pattern", "", "regular expression a code must contain")
	imageCmd.Flags().String("orientation", "", "orientations to read (vertical, horizontal, both)")
	imageCmd.Flags().Float64("eps", 0, "clustering distance in pixels")
	imageCmd.Flags().Float64("min-score", 0, "minimum detection score")
	imageCmd.Flags().Int("workers", 0, "regions read in parallel")
	imageCmd.Flags().String("detector-url", "", "detection service URL")
	imageCmd.Flags().String("recognizer", "", "recognition backend (http, tesseract)")
}
