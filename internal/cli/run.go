package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/drivetracker/internal/config"
	"github.com/fruitsalade/drivetracker/internal/journal"
	"github.com/fruitsalade/drivetracker/internal/logging"
	"github.com/fruitsalade/drivetracker/internal/metrics"
	"github.com/fruitsalade/drivetracker/internal/notify"
	"github.com/fruitsalade/drivetracker/internal/poller"
	"github.com/fruitsalade/drivetracker/internal/source"
	"github.com/fruitsalade/drivetracker/internal/source/drive"
	"github.com/fruitsalade/drivetracker/internal/source/s3"
	"github.com/fruitsalade/drivetracker/internal/source/snapshot"
	"github.com/fruitsalade/drivetracker/pkg/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the poll loop",
	Long: `Build the initial index, then poll the listing source, report changes
to the webhook and repeat until interrupted (SIGINT or SIGTERM).`,
	Args: cobra.NoArgs,
	RunE: runTracker,
}

func runTracker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(appFs, configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		return fmt.Errorf("logging init error: %w", err)
	}
	defer logging.Sync()

	if err := cfg.CheckCredentials(appFs); err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Credential file not found at %s.\n", cfg.CredentialsPath)
			fmt.Fprintln(cmd.ErrOrStderr(), "Place the service account key there or set TRACKER_CREDENTIALS.")
		}
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("drivetracker starting",
		zap.String("version", Version),
		zap.String("source", cfg.Source),
		zap.Duration("interval", cfg.PollInterval))

	lister, err := newLister(ctx, cfg)
	if err != nil {
		return err
	}

	j, err := newJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	p := poller.New(lister, notify.NewDispatcher(newSink(cfg)), j, poller.Config{
		Interval:   cfg.PollInterval,
		RetryDelay: cfg.RetryDelay,
		Report: report.Options{
			DropSegments: cfg.DropSegments,
			MinDepth:     cfg.MinDepth,
		},
	})
	if err := p.Run(ctx); err != nil {
		return err
	}
	logging.Info("drivetracker stopped")
	return nil
}

func newLister(ctx context.Context, cfg *config.Config) (source.Lister, error) {
	switch cfg.Source {
	case config.SourceS3:
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case config.SourceSnapshot:
		return snapshot.New(appFs, cfg.SnapshotPath), nil
	default:
		account, err := drive.LoadServiceAccount(appFs, cfg.CredentialsPath)
		if err != nil {
			return nil, err
		}
		return drive.New(drive.Config{BaseURL: cfg.DriveAPIURL, Account: account}), nil
	}
}

func newSink(cfg *config.Config) notify.Sink {
	if cfg.WebhookURL == "" {
		logging.Warn("no webhook configured, reports go to the log only")
		return notify.LogSink{}
	}
	return notify.NewWebhook(cfg.WebhookURL)
}

func newJournal(ctx context.Context, cfg *config.Config) (journal.Journal, error) {
	if cfg.DatabaseURL == "" {
		return journal.Log{}, nil
	}
	logging.Info("connecting to PostgreSQL...")
	pg, err := journal.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("journal database: %w", err)
	}
	return journal.Multi{journal.Log{}, pg}, nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()
	return srv
}
