package main

import (
	"flag"
	"log"

	"zonaprop-watcher/config"
	"zonaprop-watcher/fetcher"
	"zonaprop-watcher/filter"
	"zonaprop-watcher/ledger"
	"zonaprop-watcher/notify"
	"zonaprop-watcher/parser"
	"zonaprop-watcher/runner"
	"zonaprop-watcher/sheets"
	"zonaprop-watcher/sitemap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to optional YAML filter configuration")
	credentialsPath := flag.String("credentials", "", "Path to Google service account credentials JSON file (or use GOOGLE_SHEETS_CREDENTIALS env var)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v\n", err)
	}

	store, err := sheets.NewStore(cfg.SheetID, *credentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Google Sheets store: %v\n", err)
	}
	log.Printf("Google Sheets store initialized for spreadsheet: %s\n", cfg.SheetID)

	var notifier runner.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("Warning: Telegram disabled: %v\n", err)
		} else {
			notifier = tg
		}
	} else {
		log.Println("Telegram not configured (missing token or chat id)")
	}

	client := fetcher.NewClient()
	walker := sitemap.NewWalker(client, cfg.SitemapIndexURL, cfg.RobotsURL)
	extractor := parser.NewExtractor(cfg.Neighborhoods)
	policy := filter.NewPolicy(cfg.MaxPriceUSD, cfg.MaxFeeARS, cfg.MinRooms)
	reconciler := ledger.NewReconciler(store)

	run := runner.New(cfg, client, walker, extractor, policy, reconciler, notifier)
	if err := run.Run(); err != nil {
		log.Fatalf("Run failed: %v\n", err)
	}
}
