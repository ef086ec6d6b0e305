package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/codespot/internal/ingress"
	"github.com/MeKo-Tech/codespot/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// listenCmd represents the listen command.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Consume gate alarm events from the broker",
	Long: `Subscribe to gate alarm events and process each one in arrival order.

Every message is handled completely before the next is taken: the frame is
copied, codes are read, the result file is written and the search index is
updated. A message that cannot be processed is logged and acknowledged; the
listener keeps running.

Alongside the consumer an HTTP server exposes:
  GET  /healthz   - liveness
  GET  /readyz    - readiness of the configured backends
  GET  /metrics   - Prometheus metrics
  POST /v1/codes  - read codes from an uploaded frame

Examples:
  codespot listen
  codespot listen --ingress redis --ingress-url redis://localhost:6379/0
  codespot listen --index-url http://elasticsearch:9200 --metrics-addr :9100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		if err := cfg.ValidateListen(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := newServices(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := svc.Close(); cerr != nil {
				logger.Warn("closing services", zap.Error(cerr))
			}
		}()

		src, err := ingress.New(ctx, cfg.ToIngressConfig(), logger.Named("ingress"))
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Server.Addr
		srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
		opts := []server.Option{
			server.WithCodeFinder(svc.pipeline),
			server.WithLogger(logger.Named("http")),
		}
		if svc.mirror != nil {
			opts = append(opts, server.WithReadinessCheck("postgres", svc.mirror.Ping))
		}
		srv := server.New(srvCfg, opts...)

		return runListener(ctx, src, srv, svc)
	},
}

// runListener consumes events until ctx ends or either side fails, then
// stops the other side.
func runListener(ctx context.Context, src ingress.Source, srv *server.Server, svc *services) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := ingress.HandlerFunc(func(ctx context.Context, payload []byte) error {
		_, err := svc.handler.Handle(ctx, payload)
		return err
	})

	httpErr := make(chan error, 1)
	go func() {
		err := srv.Run(ctx)
		if err != nil {
			cancel()
		}
		httpErr <- err
	}()

	logger.Info("listening for events", zap.String("ingress", GetConfig().Ingress.Kind))
	consumeErr := src.Run(ctx, handle)
	cancel()
	serveErr := <-httpErr

	if errors.Is(consumeErr, context.Canceled) {
		consumeErr = nil
	}
	if consumeErr != nil {
		consumeErr = fmt.Errorf("consume events: %w", consumeErr)
	}
	logger.Info("listener stopped")
	return errors.Join(consumeErr, serveErr)
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().String("video-root", "", "root directory of the archived camera frames")
	listenCmd.Flags().String("output", "", "directory receiving frame copies and result files")
	listenCmd.Flags().String("ingress", "", "event source (amqp, redis)")
	listenCmd.Flags().String("ingress-url", "", "broker URL")
	listenCmd.Flags().String("index-url", "", "search index URL; empty disables indexing")
	listenCmd.Flags().String("metrics-addr", "", "listen address of the HTTP server")
}
