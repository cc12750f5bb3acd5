package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsDigest/internal/api"
	"github.com/LJTian/NewsDigest/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagAddr string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve the rendered digest over HTTP without sending email",
	Long: `Serve the rendered digest over HTTP without sending email.

Building a preview calls the news source and, when configured, the summary model,
so each build spends API quota. Results are reused for 5 minutes and failures are
not cached. The server has no authentication: bind it to localhost or put it behind
a proxy that does.`,
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default PREVIEW_ADDR)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	p, err := pipeline.PreviewFromConfig(cfg, log)
	if err != nil {
		log.Error("invalid config", zap.Error(err))
		return err
	}

	addr := cfg.PreviewAddr
	if flagAddr != "" {
		addr = flagAddr
	}

	if cfg.LogFormat != "console" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.NewServer(p, log.With(zap.String("component", "api"))).RegisterRoutes(r)

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("preview server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("preview server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
