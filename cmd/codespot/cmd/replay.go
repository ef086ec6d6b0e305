package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/codespot/internal/index"
	"github.com/spf13/cobra"
)

// replayReport is the replay command output for one event.
type replayReport struct {
	RunID      string `json:"run_id"`
	ObjectID   string `json:"object_id,omitempty"`
	Stage      string `json:"stage"`
	FramePath  string `json:"frame_path,omitempty"`
	ResultPath string `json:"result_path,omitempty"`
	Codes      int    `json:"codes"`
	Indexed    bool   `json:"indexed"`
	Error      string `json:"error,omitempty"`
}

// replayCmd represents the replay command.
var replayCmd = &cobra.Command{
	Use:   "replay [event.json|-]",
	Short: "Process a stored event or resend failed index updates",
	Long: `Process one event payload exactly as the listener would, reading it from a
file or from standard input ("-" or no argument). The report printed on
stdout shows how far the event got.

With --dead-letters, every index update that failed after all retries is
sent again. Updates that succeed are removed from the dead letter directory.

Examples:
  codespot replay event.json
  echo '{"object_id":"obj-42","event_time":"2023-09-29T06:09:10.5","camera_uuid":"cam1"}' | codespot replay
  codespot replay --dead-letters --index-url http://elasticsearch:9200`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deadLetters, _ := cmd.Flags().GetBool("dead-letters")
		if deadLetters {
			if len(args) > 0 {
				return errors.New("--dead-letters takes no event argument")
			}
			return replayDeadLetters(cmd)
		}
		return replayEvent(cmd, args)
	},
}

func replayEvent(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), GetConfig(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	rep, herr := svc.handler.Handle(cmd.Context(), payload)
	out := replayReport{
		RunID:      rep.RunID,
		ObjectID:   rep.Event.ObjectID,
		Stage:      rep.Stage.String(),
		FramePath:  rep.FramePath,
		ResultPath: rep.ResultPath,
		Codes:      len(rep.Record.Result),
		Indexed:    rep.Indexed,
	}
	if herr != nil {
		out.Error = herr.Error()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return herr
}

func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	return data, nil
}

func replayDeadLetters(cmd *cobra.Command) error {
	cfg := GetConfig()
	if cfg.Index.URL == "" {
		return errors.New("index url is not configured")
	}
	client, err := index.NewClient(cfg.ToIndexConfig(), logger.Named("index"))
	if err != nil {
		return err
	}
	rep, err := client.Replay(cmd.Context())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, failed %d\n", rep.Replayed, rep.Failed)
	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d dead letters could not be replayed", rep.Failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Bool("dead-letters", false, "resend index updates stored in the dead letter directory")
	replayCmd.Flags().String("video-root", "", "root directory of the archived camera frames")
	replayCmd.Flags().String("output", "", "directory receiving frame copies and result files")
	replayCmd.Flags().String("index-url", "", "search index URL; empty disables indexing")
}
