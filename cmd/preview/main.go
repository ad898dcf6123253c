package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clerkbot/activity-clerk/internal/config"
	"github.com/clerkbot/activity-clerk/internal/domain"
	"github.com/clerkbot/activity-clerk/internal/mediawiki"
	"github.com/clerkbot/activity-clerk/internal/terminal"
	"github.com/clerkbot/activity-clerk/internal/watch"
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
		proceeding   string
		watchURL     string
		wikitext     bool
	)
	flag.StringVar(&settingsPath, "settings", "settings.yaml", "YAML settings file (ignored when missing)")
	flag.StringVar(&proceeding, "proceeding", "", "Only show the proceeding with this anchor")
	flag.StringVar(&watchURL, "watch", "", "Follow the cycle stream of a running bot (e.g. http://localhost:8080) instead of generating a report")
	flag.BoolVar(&wikitext, "wikitext", false, "Print the report page wikitext instead of tables")
	flag.Parse()

	cfg, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watchURL != "" {
		sub, err := watch.NewSubscriber(watchURL, func(s domain.CycleSummary) {
			fmt.Println(terminal.SummaryLine(s))
		}, logger)
		if err != nil {
			return err
		}
		if err := sub.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

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

	// Generate never writes, so the client serves as both ends.
	service, err := domain.NewActivityService(cfg.ServiceConfig(), wiki, wiki, logger)
	if err != nil {
		return fmt.Errorf("create activity service: %w", err)
	}

	report, err := service.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if wikitext {
		fmt.Println(domain.RenderReport(report, cfg.ServiceConfig().Render))
		return nil
	}
	fmt.Println(terminal.RenderReport(report, proceeding))
	return nil
}
