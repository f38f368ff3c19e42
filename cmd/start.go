/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/citebot/handler"
	"github.com/tieubaoca/citebot/observability"
	"github.com/tieubaoca/citebot/service"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the question answering server",
	Long:  `Starts the HTTP and websocket server that answers questions with cited, verified answers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracer, err := observability.InitTracer(ctx, cfg.Otel.ServiceName, cfg.Otel.Endpoint)
		if err != nil {
			return err
		}
		defer shutdownTracer(context.Background())

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewPipelineMetrics(registry)

		c, err := buildComponents(ctx, cfg, metrics, false)
		if err != nil {
			return err
		}
		defer c.Close()

		handlers := handler.Handlers{
			QA:       handler.NewQAHandler(c.pipeline),
			Search:   handler.NewSearchHandler(c.retriever, cfg.Retrieval.Limit),
			Document: handler.NewDocumentHandler(cfg.UploadDir),
		}
		if c.store != nil {
			files, err := service.NewFileService(cfg.UploadDir, c.store, service.NewPDFService(service.DefaultDocumentServiceConfig))
			if err != nil {
				return err
			}
			handlers.Upload = handler.NewUploadHandler(files)
		}

		router := gin.New()
		router.Use(gin.Recovery(), otelgin.Middleware(cfg.Otel.ServiceName))
		handler.SetupRoutes(router, handlers, registry)

		srv := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: router,
		}
		errc := make(chan error, 1)
		go func() {
			zap.L().Info("starting server",
				zap.String("port", cfg.Port),
				zap.String("retrieval_backend", cfg.Retrieval.Backend),
				zap.String("llm_provider", cfg.LLM.Provider))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
