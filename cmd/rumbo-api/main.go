package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	httpadapter "github.com/PabloGalante/rumbo-agent/internal/adapters/http"
	"github.com/PabloGalante/rumbo-agent/internal/adapters/llm"
	pushloc "github.com/PabloGalante/rumbo-agent/internal/adapters/location"
	memstore "github.com/PabloGalante/rumbo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/rumbo-agent/internal/app/citations"
	"github.com/PabloGalante/rumbo-agent/internal/app/conversation"
	"github.com/PabloGalante/rumbo-agent/internal/app/geofilter"
	"github.com/PabloGalante/rumbo-agent/internal/app/location"
	"github.com/PabloGalante/rumbo-agent/internal/config"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
	"github.com/PabloGalante/rumbo-agent/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		port       string
	)

	cmd := &cobra.Command{
		Use:           "rumbo-api",
		Short:         "Rumbo trip-planning assistant API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "config:", err)
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults to $RUMBO_CONFIG_FILE)")
	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides config and env")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := observability.Init(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	answerer, err := newAnswerer(ctx, cfg)
	if err != nil {
		log.Error("error initializing answering service", "error", err)
		return err
	}

	instructions, err := llm.LoadPromptBuilder(cfg.LLM.InstructionsFile)
	if err != nil {
		log.Error("error loading instruction template", "error", err)
		return err
	}

	store := memstore.NewSessionStore[*conversation.Session](cfg.Session.IdleTTL)
	defer store.Close()

	svc := conversation.NewService(answerer, instructions, store, conversation.Options{
		Thresholds: geofilter.Thresholds{
			MinDistanceMeters: cfg.Location.MinDistanceMeters,
			MaxAge:            cfg.Location.MaxAge,
		},
		Location: location.Options{
			Timeout:         cfg.Location.WatchTimeout,
			FallbackTimeout: cfg.Location.FallbackTimeout,
		},
		AnswerTimeout: cfg.LLM.Timeout,
		Limiter:       newLimiter(cfg.LLM.RequestsPerMinute),
		NewFeed: func() conversation.DeviceFeed {
			return pushloc.NewPushSource()
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(svc, citations.DefaultTrafficClassifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Rumbo API listening", "port", cfg.Port, "mode", cfg.Mode, "mock_llm", cfg.LLM.UseMock)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		return err
	}
	return nil
}

func newAnswerer(ctx context.Context, cfg *config.Config) (domain.AnsweringService, error) {
	if cfg.LLM.UseMock {
		observability.Logger().Info("using mock answering service")
		return llm.NewMockLLM(), nil
	}

	observability.Logger().Info("using Gemini answering service",
		"model", cfg.LLM.ModelName,
		"vertex", cfg.LLM.UseVertex,
	)
	return llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:    cfg.LLM.APIKey,
		UseVertex: cfg.LLM.UseVertex,
		Project:   cfg.LLM.GCPProjectID,
		Location:  cfg.LLM.GCPLocation,
		Model:     cfg.LLM.ModelName,
	})
}

// newLimiter spreads requestsPerMinute evenly; zero means unlimited.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := max(1, requestsPerMinute/10)
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}
