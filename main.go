package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/autobill/auth"
	"github.com/autobill/browser"
	"github.com/autobill/collect"
	"github.com/autobill/config"
	"github.com/autobill/service"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 5001, "HTTP API port")
	downloadDir := flag.String("download", "./downloads", "Download directory")
	processedDir := flag.String("processed", "./processed", "Processed files directory")
	accountsPath := flag.String("accounts", "accounts.yaml", "Path to the accounts file")
	historyPath := flag.String("history", "autobill.db", "Path to the run history database")
	headless := flag.Bool("headless", true, "Run browsers in headless mode")
	autoUpdate := flag.Bool("auto-update", true, "Enable automatic updates")
	updateInterval := flag.String("update-interval", "6h", "Update check interval (e.g., 1h, 30m)")
	schedule := flag.String("schedule", "", "Cron spec for scheduled collection (empty disables)")
	serviceCmd := flag.String("service", "", "Service command: install|uninstall|start|stop|restart|status|run")
	company := flag.String("company", "", "One-shot mode: collect for this company and exit")
	startDate := flag.String("start", "", "One-shot mode: range start (YYYY-MM-DD)")
	endDate := flag.String("end", "", "One-shot mode: range end (YYYY-MM-DD)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("autobill version %s\n", Version)
		return
	}

	logger := log.New(os.Stdout, "[AUTOBILL] ", log.LstdFlags)

	if err := config.LoadDotenv(".env"); err != nil {
		logger.Printf("Failed to load .env: %v", err)
	}

	prg := &service.Program{
		Logger:              logger,
		Port:                *port,
		DownloadDir:         *downloadDir,
		ProcessedDir:        *processedDir,
		AccountsPath:        *accountsPath,
		HistoryPath:         *historyPath,
		Headless:            *headless,
		Version:             Version,
		AutoUpdate:          *autoUpdate,
		UpdateInterval:      *updateInterval,
		MonthlySpec:         *schedule,
		GroupwareLoginURL:   os.Getenv("GROUPWARE_LOGIN_URL"),
		GroupwareExpenseURL: os.Getenv("GROUPWARE_EXPENSE_URL"),
	}

	// One-shot CLI collection, no server.
	if *company != "" {
		runCLIMode(logger, *company, *startDate, *endDate, *accountsPath, *downloadDir, *headless)
		return
	}

	if *serviceCmd != "" {
		if err := service.RunServiceCommand(*serviceCmd, prg, logger); err != nil {
			logger.Fatalf("%v", err)
		}
		return
	}

	logger.Println("Running interactively. Press Ctrl+C to stop.")
	if err := service.RunServiceCommand("run", prg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

// runCLIMode collects billing files for every account of one company and
// prints where they landed.
func runCLIMode(logger *log.Logger, company, start, end, accountsPath, downloadDir string, headless bool) {
	var rng config.DateRange
	var err error
	if start == "" && end == "" {
		rng = config.PreviousMonth(time.Now())
	} else {
		rng, err = config.ParseRange(start, end)
		if err != nil {
			logger.Fatalf("Invalid date range: %v", err)
		}
	}

	source, err := config.LoadAccounts(accountsPath)
	if err != nil {
		logger.Fatalf("Failed to load accounts: %v", err)
	}
	accounts := source.ForCompany(company)
	if len(accounts) == 0 {
		logger.Fatalf("No accounts configured for company: %s", company)
	}

	absDownload, err := filepath.Abs(downloadDir)
	if err != nil {
		absDownload = downloadDir
	}

	registry := browser.NewRegistry(logger)
	defer registry.CloseAll()

	opts := browser.Options{Headless: headless, DownloadDir: absDownload}
	authn := auth.New(registry, opts, logger)
	driver := collect.NewDriver(authn, registry, browser.NewDownloadLock(absDownload), logger)

	logger.Printf("Collecting %s for %s", company, rng)
	failed := 0
	for _, account := range accounts {
		outcome, err := driver.Collect(account, rng, false)
		if err != nil {
			logger.Printf("Collection failed for %s/%s: %v", account.Company, account.Kind, err)
			failed++
			continue
		}
		if outcome.Empty() {
			logger.Printf("%s/%s: no billing data in range", outcome.Company, outcome.Kind)
			continue
		}
		for _, f := range outcome.Files {
			logger.Printf("%s/%s: downloaded %s", outcome.Company, outcome.Kind, f)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
	logger.Println("Collection finished")
}
