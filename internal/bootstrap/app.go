package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gdg-qu/certmailer/config"
	"github.com/gdg-qu/certmailer/internal/adapters/convert"
	"github.com/gdg-qu/certmailer/internal/adapters/mail"
	"github.com/gdg-qu/certmailer/internal/adapters/taskrunner"
	"github.com/gdg-qu/certmailer/internal/data"
	"github.com/gdg-qu/certmailer/internal/devseed"
	"github.com/gdg-qu/certmailer/internal/domain/retry"
	httpx "github.com/gdg-qu/certmailer/internal/http"
	"github.com/gdg-qu/certmailer/internal/observability/statsd"
	"github.com/gdg-qu/certmailer/internal/service"
)

const shutdownGrace = 30 * time.Second

// App holds the wired application.
type App struct {
	Config config.AppConfig
	Logger *slog.Logger

	DB      *sql.DB
	Metrics *statsd.Client
	Runner  *taskrunner.Runner
	Jobs    *service.JobService
	Server  *http.Server
}

// NewApp wires storage, adapters, and services from configuration. The
// conversion backend is probed once so a missing LibreOffice install fails
// startup instead of every task.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := data.Open(cfg.Storage.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	repo := data.NewJobRepo(db)
	summary := data.NewSummaryWriter()

	metricsClient, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  "certmailer",
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	converter, err := convert.New(convert.Options{
		Binary:  cfg.Pipeline.ConverterPath,
		Format:  cfg.Pipeline.OutputFormat,
		Timeout: cfg.Pipeline.ConvertTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init converter: %w", err)
	}
	if err := converter.Check(ctx); err != nil {
		return nil, fmt.Errorf("conversion backend unavailable: %w", err)
	}

	sender, err := mail.NewResendSender(mail.ResendConfig{
		APIKey:      cfg.Mail.APIKey,
		SenderEmail: cfg.Mail.SenderEmail,
		SenderName:  cfg.Mail.SenderName,
	})
	if err != nil {
		return nil, fmt.Errorf("init mail sender: %w", err)
	}

	if cfg.IsDev() {
		if err := devseed.EnsureTemplates(ctx, &cfg.Templates, logger); err != nil {
			return nil, fmt.Errorf("seed development templates: %w", err)
		}
	}

	composer, err := mail.NewComposer(cfg.Templates.Email)
	if err != nil {
		return nil, fmt.Errorf("init email composer: %w", err)
	}

	templates, err := service.NewTemplateStore(cfg.Templates.Official, cfg.Templates.Unofficial)
	if err != nil {
		return nil, fmt.Errorf("init template store: %w", err)
	}

	policy, err := retry.NewPolicy(cfg.Pipeline.MaxAttempts, cfg.Pipeline.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("init retry policy: %w", err)
	}

	pipeline := service.MustNewPipeline(service.PipelineOptions{
		Repo:         repo,
		Templates:    templates,
		Renderer:     service.NewRenderer(cfg.Templates.DelimiterStart, cfg.Templates.DelimiterEnd),
		Converter:    converter,
		Composer:     composer,
		Sender:       sender,
		ConvertRetry: policy,
		SendRetry:    policy,
		SendTimeout:  cfg.Pipeline.SendTimeout,
		Metrics:      metricsClient,
		Logger:       logger,
	})

	runner := taskrunner.MustNewRunner(taskrunner.RunnerOptions{
		Repo:     repo,
		Pipeline: pipeline,
		Summary:  summary,
		Workers:  cfg.Pipeline.Workers,
		Metrics:  metricsClient,
		Logger:   logger,
	})

	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:       repo,
		Dispatcher: runner,
		Summary:    summary,
		JobsRoot:   cfg.Storage.JobsRoot,
		Logger:     logger,
	})

	router := httpx.NewRouter(httpx.RouterServices{Jobs: jobs})
	handler := httpx.Logging(logger)(router)
	handler = httpx.Recover(logger)(handler)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: metricsClient,
		Runner:  runner,
		Jobs:    jobs,
		Server:  server,
	}, nil
}

// Run recovers interrupted jobs, serves the API, and blocks until ctx is
// cancelled, then drains in-flight work and shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Runner.Recover(ctx); err != nil {
		return fmt.Errorf("recover unfinished jobs: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("starting HTTP server", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Stop accepting requests first so no new jobs arrive while draining.
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("http shutdown", "error", err)
	}

	if err := a.Runner.Shutdown(ctx); err != nil {
		a.Logger.Warn("runner drain interrupted; unfinished work resumes at next startup",
			"error", err)
	}

	if err := a.Metrics.Close(); err != nil {
		a.Logger.Debug("close metrics client", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("close job store: %w", err)
	}

	a.Logger.Info("shutdown complete")
	return nil
}
