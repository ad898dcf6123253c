package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clerkbot/activity-clerk/internal/config"
	"github.com/clerkbot/activity-clerk/internal/domain"
	"github.com/clerkbot/activity-clerk/internal/httpserver"
	"github.com/clerkbot/activity-clerk/internal/mediawiki"
	"github.com/clerkbot/activity-clerk/internal/notify"
	"github.com/clerkbot/activity-clerk/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		settingsPath string
		once         bool
	)
	flag.StringVar(&settingsPath, "settings", "settings.yaml", "YAML settings file (ignored when missing)")
	flag.BoolVar(&once, "once", false, "Run a single cycle and exit")
	flag.Parse()

	cfg, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wiki, err := mediawiki.NewClient(mediawiki.Options{
		APIURL:     cfg.APIURL,
		UserAgent:  cfg.UserAgent,
		MaxLag:     cfg.MaxLag,
		Timeout:    cfg.RequestTimeout,
		OAuthToken: cfg.OAuthToken,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create wiki client: %w", err)
	}
	if cfg.User != "" {
		if err := wiki.Login(ctx, cfg.User, cfg.BotPassword); err != nil {
			return fmt.Errorf("log in as %s: %w", cfg.User, err)
		}
	}

	var (
		sink domain.PageSink = wiki
		opts []domain.ServiceOption
	)

	if cfg.DatabasePath != "" {
		repo, err := sqlite.NewRepository(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("create repository: %w", err)
		}
		defer repo.Close()
		logger.Info("opened database", "path", cfg.DatabasePath)

		opts = append(opts, domain.WithRunRepository(repo))
		if cfg.DryRun {
			sink = repo
			logger.Info("dry run: generated pages go to the local database")
		}
	}
	if !cfg.DryRun && !wiki.Authenticated() {
		logger.Warn("no credentials configured, edits will be made logged out")
	}

	if cfg.RedisAddr != "" {
		publisher, err := notify.NewPublisher(ctx, notify.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		}, logger)
		if err != nil {
			return fmt.Errorf("create redis publisher: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, domain.WithObservers(publisher))
	}

	var hub *httpserver.Hub
	if cfg.HTTPAddr != "" && !once {
		hub = httpserver.NewHub(logger)
		opts = append(opts, domain.WithObservers(hub))
	}

	service, err := domain.NewActivityService(cfg.ServiceConfig(), wiki, sink, logger, opts...)
	if err != nil {
		return fmt.Errorf("create activity service: %w", err)
	}

	if once {
		summary, err := service.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("run cycle: %w", err)
		}
		logger.Info("cycle complete",
			"run_id", summary.RunID,
			"proceedings", summary.Proceedings,
			"participants", summary.Participants,
			"report_saved", summary.ReportSaved,
			"data_saved", summary.DataSaved,
		)
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go service.StartCleanupJob(ctx, time.Hour, cfg.RunRetention)

	var server *httpserver.Server
	if hub != nil {
		server = httpserver.NewServer(cfg.HTTPAddr, service, hub, logger)
		go func() {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server exited with error", "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		service.Start(ctx, cfg.RunInterval)
		close(done)
	}()

	logger.Info("bot started",
		"report_page", cfg.ReportPage,
		"data_page", cfg.DataPage,
		"interval", cfg.RunInterval,
		"dry_run", cfg.DryRun,
	)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	<-done

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down http server", "error", err)
		}
	}

	return nil
}
