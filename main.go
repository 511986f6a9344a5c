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

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/adapter/telephony"
	"github.com/adam-a-i/ruya/internal/adapter/tts"
	"github.com/adam-a-i/ruya/internal/adapter/voice"
	"github.com/adam-a-i/ruya/internal/config"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/repository"
	"github.com/adam-a-i/ruya/internal/service"
	handler "github.com/adam-a-i/ruya/internal/transport/http"
	"github.com/adam-a-i/ruya/policy"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ruya: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting ruya",
		"http_port", cfg.HTTPPort,
		"internal_port", cfg.InternalPort,
		"database", cfg.DatabaseURL,
		"llm_mode", cfg.LLMMode,
		"mutation_threshold", cfg.MutationThreshold,
	)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	deps := service.Deps{
		Store:  db,
		Config: cfg,
		Logger: log,
	}

	// Reasoning service
	deps.LLM = llm.NewLLMClient(cfg.LLMMode, llm.Config{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		Model:           cfg.LLMModel,
		AzureDeployment: cfg.LLMAzureDeployment,
		AzureAPIVersion: cfg.LLMAzureAPIVersion,
		Timeout:         cfg.LLMTimeout(),
	}, log.With("component", "llm"))

	// Telephony
	dialer, err := telephony.New(log.With("component", "telephony"), telephony.Config{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		FlowSID:     cfg.TwilioFlowSID,
		DefaultFrom: cfg.TwilioFromNumber,
		BaseURL:     cfg.TwilioBaseURL,
		Timeout:     cfg.TelephonyTimeout(),
		MaxRetries:  cfg.TwilioMaxRetries,
	})
	if err != nil {
		log.Warn("telephony not configured, ringing disabled", "error", err)
	} else {
		deps.Dialer = dialer
	}

	// Voice delivery and speech synthesis. Both constructors return nil when
	// unconfigured; only non-nil values go into the interfaces.
	if vapi := voice.NewVapiClient(voice.Config{
		APIKey:      cfg.VapiAPIKey,
		AssistantID: cfg.VapiAssistantID,
		BaseURL:     cfg.VapiBaseURL,
		Model:       cfg.VapiModel,
		Timeout:     cfg.VoiceTimeout(),
	}); vapi != nil {
		deps.Publisher = vapi
	} else {
		log.Warn("voice delivery not configured, new strategies will not be published")
	}
	if cartesia := tts.NewCartesia(tts.Config{
		APIKey:  cfg.CartesiaAPIKey,
		VoiceID: cfg.CartesiaVoiceID,
		BaseURL: cfg.CartesiaBaseURL,
		Timeout: cfg.TTSTimeout(),
	}); cartesia != nil {
		deps.Synthesizer = cartesia
	}

	// Initialize policy engine
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Policy, err = policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Initialize service
	svc := service.New(deps)
	active, err := svc.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap strategy: %w", err)
	}
	log.Info("active strategy", "version", active.Version, "total_calls", active.TotalCalls)

	externalServer := handler.NewExternalServer(svc, cfg, log)
	internalServer := handler.NewInternalServer(svc, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Pipeline().Run(gctx)
	})
	g.Go(func() error {
		return serve(externalServer, cfg.HTTPPort)
	})
	g.Go(func() error {
		return serve(internalServer, cfg.InternalPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := externalServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("external server: %w", err))
		}
		if err := internalServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("internal server: %w", err))
		}
		return errors.Join(errs...)
	})

	log.Info("servers started", "http_port", cfg.HTTPPort, "internal_port", cfg.InternalPort)
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("ruya stopped")
	return nil
}

func serve(e *echo.Echo, port int) error {
	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on port %d: %w", port, err)
	}
	return nil
}
