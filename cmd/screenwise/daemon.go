package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/screenwise/screenwise/actions"
	"github.com/screenwise/screenwise/automation"
	"github.com/screenwise/screenwise/capture"
	"github.com/screenwise/screenwise/config"
	"github.com/screenwise/screenwise/internal/credstore"
	"github.com/screenwise/screenwise/internal/history"
	"github.com/screenwise/screenwise/internal/metrics"
	"github.com/screenwise/screenwise/internal/telemetry"
	"github.com/screenwise/screenwise/ocr"
	"github.com/screenwise/screenwise/types"
	"github.com/screenwise/screenwise/vision"
)

const apiKeyEnv = "SCREENWISE_API_KEY"

// analyzerAdapter binds the loop's per-frame analysis calls to the vision
// analyzer with the daemon's fixed options.
type analyzerAdapter struct {
	analyzer *vision.Analyzer
	opts     vision.AnalyzeOptions
}

func (a analyzerAdapter) Analyze(ctx context.Context, frame *types.Frame) *types.AnalysisResult {
	return a.analyzer.Analyze(ctx, frame, a.opts)
}

// runDaemon wires the full pipeline and blocks until SIGINT/SIGTERM.
func runDaemon(cfg *config.Config, enable bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProvider, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return err
	}

	source, err := buildSource(cfg.Capture, logger)
	if err != nil {
		return err
	}
	extractor := buildExtractor(cfg.OCR, logger)

	relay := actions.NewRelay(cfg.Relay, logger)
	defer relay.Close()

	clientCfg := cfg.Vision.Client
	clientCfg.APIKey = apiKey
	client := vision.NewClient(clientCfg, logger)

	analyzer := vision.NewAnalyzer(cfg.Vision.Analyzer, client, logger)
	oracle := vision.NewOracle(vision.OracleConfig{Model: cfg.Vision.OracleModel}, client, logger)
	verifier := vision.NewVerifier(vision.VerifierConfig{Model: cfg.Vision.VerifierModel}, client, logger)

	deps := automation.Deps{
		Source:   source,
		OCR:      extractor,
		Analyzer: analyzerAdapter{analyzer: analyzer},
		Oracle:   oracle,
		Verifier: verifier,
		Executor: relay,
		Metrics:  metrics.NewCollector("screenwise", prometheus.DefaultRegisterer),
		Report:   reportLogger(logger),
		Logger:   logger,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		deps.Recorder = store
	}

	controller := automation.NewController(cfg.Automation, deps)
	if enable {
		controller.Enable()
		if err := controller.Start(ctx); err != nil {
			return fmt.Errorf("start automation: %w", err)
		}
	} else {
		logger.Info("master switch off, automation idle until enabled")
	}
	defer controller.Stop()

	g, gctx := errgroup.WithContext(ctx)

	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info("screenwise running",
		zap.String("mode", string(cfg.Automation.Mode)),
		zap.Duration("interval", cfg.Automation.Interval),
	)

	return g.Wait()
}

// resolveAPIKey prefers the environment, then the encrypted store.
func resolveAPIKey(cfg *config.Config) (string, error) {
	if key := os.Getenv(apiKeyEnv); key != "" {
		return key, nil
	}

	store := credstore.NewStore(cfg.Credential.Path, passphrase())
	key, err := store.Load()
	if err != nil {
		if types.GetErrorCode(err) == types.ErrNoCredential {
			return "", fmt.Errorf("no API key: set %s or run 'screenwise credential set'", apiKeyEnv)
		}
		return "", fmt.Errorf("load credential: %w", err)
	}
	return key, nil
}

func buildSource(cfg config.CaptureConfig, logger *zap.Logger) (capture.FrameSource, error) {
	switch cfg.Backend {
	case "dir":
		return capture.NewDirSource(cfg.Directory)
	default:
		return capture.NewFFmpegSource(logger,
			capture.WithBinary(cfg.Binary),
			capture.WithDisplay(cfg.Display),
			capture.WithTimeout(cfg.Timeout),
		), nil
	}
}

func buildExtractor(cfg config.OCRConfig, logger *zap.Logger) ocr.TextExtractor {
	if !cfg.Enabled {
		return ocr.Noop{}
	}
	return ocr.NewTesseract(logger,
		ocr.WithTesseractBinary(cfg.Binary),
		ocr.WithLanguages(cfg.Languages...),
		ocr.WithPageSegMode(cfg.PageSegMode),
		ocr.WithTimeout(cfg.Timeout),
	)
}

// reportLogger surfaces selection outcomes in the process log.
func reportLogger(logger *zap.Logger) automation.ReportFunc {
	return func(r automation.Report) {
		fields := []zap.Field{
			zap.String("kind", string(r.Kind)),
			zap.String("question", r.QuestionText),
			zap.String("option", r.OptionText),
			zap.Float64("confidence", r.Confidence),
			zap.Int("attempts", r.Attempts),
		}
		if r.Detail != "" {
			fields = append(fields, zap.String("detail", r.Detail))
		}
		switch r.Kind {
		case automation.ReportSelected:
			logger.Info("answer selected", fields...)
		default:
			logger.Warn("selection not completed", fields...)
		}
	}
}
