package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lym-afla/Encar/alert"
	"github.com/lym-afla/Encar/config"
	"github.com/lym-afla/Encar/scraper/encar"
	"github.com/lym-afla/Encar/services"
	"github.com/lym-afla/Encar/storage"
	"github.com/lym-afla/Encar/utils"
)

const searchPageURL = "http://www.encar.com/"

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Verbose)
	logger.Info("=== Encar Listing Monitor starting ===")
	logger.Info("Query — %s %s | years %d..%d | price ..%d만원 | interval %dm",
		cfg.Search.Manufacturer, cfg.Search.ModelGroup,
		cfg.Search.YearMin, cfg.Search.YearMax,
		cfg.Search.PriceMaxManwon, cfg.Monitoring.IntervalMinutes)

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure the database is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := encar.NewSessionManager(
		&encar.BrowserHandshaker{
			SearchURL: searchPageURL,
			Timeout:   time.Duration(cfg.Session.HandshakeTimeoutSeconds) * time.Second,
			Logger:    logger,
		},
		time.Duration(cfg.Session.ValidityMinutes)*time.Minute,
		logger,
	)

	feed := encar.NewClient(sessions, cfg.Feed, logger)

	extractor := encar.NewExtractor(context.Background(),
		time.Duration(cfg.Feed.TimeoutSeconds)*time.Second, logger)
	defer extractor.Close()

	publishers := []alert.Publisher{&alert.ConsolePublisher{Logger: logger}}
	if cfg.Alerts.TelegramEnabled {
		publishers = append(publishers,
			alert.NewTelegramPublisher(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, logger))
		logger.Info("Telegram alerts enabled for chat %s", cfg.Alerts.TelegramChatID)
	}

	var snapshots services.SnapshotWriter
	if cfg.Snapshot.Path != "" {
		snap, err := storage.NewCSVSnapshot(cfg.Snapshot.Path)
		if err != nil {
			logger.Error("Snapshot writer unavailable: %v", err)
		} else {
			snapshots = snap
			logger.Info("Cycle snapshots → %s", cfg.Snapshot.Path)
		}
	}

	monitor := services.NewMonitor(
		cfg,
		feed,
		extractor,
		services.NewClassifier(cfg.Lease, logger),
		services.NewChangeDetector(store, logger),
		store,
		&alert.Fanout{Publishers: publishers, Logger: logger},
		snapshots,
		logger,
	)

	monitor.Run(ctx)
	logger.Info("=== Monitor stopped ===")
}
