// Package service runs the API server under an OS service manager, with
// file logging, the monthly collection schedule and the auto-updater.
package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	svc "github.com/kardianos/service"
	"github.com/robfig/cron/v3"

	"github.com/autobill/config"
	"github.com/autobill/server"
	"github.com/autobill/store"
	"github.com/autobill/submit"
	"github.com/autobill/updater"
)

// Program implements service.Interface.
type Program struct {
	Logger *log.Logger

	Port         int
	DownloadDir  string
	ProcessedDir string
	AccountsPath string
	HistoryPath  string
	Headless     bool
	Version      string

	AutoUpdate     bool
	UpdateInterval string

	// MonthlySpec is the cron expression for the scheduled collection of
	// every configured company. Empty disables the schedule.
	MonthlySpec string

	GroupwareLoginURL   string
	GroupwareExpenseURL string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cron    *cron.Cron
	updater *updater.Updater
	logFile *os.File
}

// Start is called by the service manager; the work happens on run's
// goroutine.
func (p *Program) Start(s svc.Service) error {
	svcLogger, _ := s.Logger(nil)

	if err := p.setupFileLogger(); err != nil {
		if svcLogger != nil {
			svcLogger.Error("Failed to setup file logger: " + err.Error())
		}
	}
	if svcLogger != nil {
		svcLogger.Info("Service starting...")
	}
	if p.Logger != nil {
		p.Logger.Printf("Service Start() called, port=%d", p.Port)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop tears everything down: schedule, HTTP server, browsers, log file.
func (p *Program) Stop(s svc.Service) error {
	if p.Logger != nil {
		p.Logger.Println("Service stopping...")
	}
	if p.cancel != nil {
		p.cancel()
	}
	if p.cron != nil {
		p.cron.Stop()
	}
	p.wg.Wait()
	if p.Logger != nil {
		p.Logger.Println("Service stopped")
	}
	if p.logFile != nil {
		p.logFile.Close()
	}
	return nil
}

func (p *Program) setupFileLogger() error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	logDir := filepath.Join(filepath.Dir(exePath), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log dir %s: %w", logDir, err)
	}

	logPath := filepath.Join(logDir, "autobill.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	p.logFile = f
	mw := io.MultiWriter(os.Stdout, f)
	p.Logger = log.New(mw, "[AUTOBILL] ", log.LstdFlags)
	return nil
}

func (p *Program) run() {
	defer p.wg.Done()

	if p.Logger == nil {
		if p.logFile != nil {
			p.Logger = log.New(p.logFile, "[AUTOBILL] ", log.LstdFlags)
		} else {
			p.Logger = log.New(os.Stderr, "[AUTOBILL] ", log.LstdFlags)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Printf("run() panic recovered: %v", r)
		}
	}()

	if !filepath.IsAbs(p.DownloadDir) {
		exePath, _ := os.Executable()
		p.DownloadDir = filepath.Join(filepath.Dir(exePath), p.DownloadDir)
	}
	if err := os.MkdirAll(p.DownloadDir, 0755); err != nil {
		p.Logger.Printf("Failed to create download directory: %v", err)
	}

	source, err := config.LoadAccounts(p.AccountsPath)
	if err != nil {
		p.Logger.Printf("Failed to load accounts from %s: %v", p.AccountsPath, err)
		return
	}
	p.Logger.Printf("Loaded %d company configuration(s)", len(source.Companies))

	var db *store.DB
	if p.HistoryPath != "" {
		db, err = store.Open(p.HistoryPath)
		if err != nil {
			p.Logger.Printf("Run history disabled, failed to open %s: %v", p.HistoryPath, err)
		} else {
			defer db.Close()
		}
	}

	srv := server.New(server.Config{
		Port:         p.Port,
		DownloadDir:  p.DownloadDir,
		ProcessedDir: p.ProcessedDir,
		Headless:     p.Headless,
		Groupware: submit.Config{
			LoginURL:   p.GroupwareLoginURL,
			ExpenseURL: p.GroupwareExpenseURL,
		},
	}, source, db, p.Logger)

	if p.AutoUpdate {
		p.startAutoUpdate()
	}
	if p.MonthlySpec != "" {
		p.startSchedule(srv, source)
	}

	if err := srv.Start(p.ctx); err != nil {
		p.Logger.Printf("API server exited: %v", err)
	}
}

// startSchedule arms the recurring collection of every company over the
// previous calendar month.
func (p *Program) startSchedule(srv *server.Server, source *config.Source) {
	p.cron = cron.New()
	_, err := p.cron.AddFunc(p.MonthlySpec, func() {
		rng := config.PreviousMonth(time.Now())
		p.Logger.Printf("Scheduled collection starting for %d companies (%s)",
			len(source.Companies), rng)
		for _, company := range source.Companies {
			id := srv.RunCollection(company, rng)
			p.Logger.Printf("Scheduled collection task %s for %s", id, company)
		}
	})
	if err != nil {
		p.Logger.Printf("Invalid schedule spec %q: %v", p.MonthlySpec, err)
		return
	}
	p.cron.Start()
	p.Logger.Printf("Collection schedule armed: %s", p.MonthlySpec)
}

func (p *Program) startAutoUpdate() {
	cfg := updater.DefaultConfig(p.Version)
	if p.UpdateInterval != "" {
		if interval, err := updater.ParseDuration(p.UpdateInterval); err == nil {
			cfg.CheckInterval = interval
		}
	}
	p.updater = updater.New(cfg, p.Logger)

	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, 2*time.Minute)
		defer cancel()
		if updated, err := p.updater.CheckAndUpdate(ctx); err != nil {
			p.Logger.Printf("Startup update check failed: %v", err)
		} else if updated {
			p.Logger.Println("Update applied, service will restart...")
			p.restart()
		}
	}()

	p.updater.StartPeriodicCheck(p.ctx, func() {
		p.Logger.Println("Update available, applying...")
		if _, err := p.updater.CheckAndUpdate(p.ctx); err != nil {
			p.Logger.Printf("Failed to apply update: %v", err)
			return
		}
		p.Logger.Println("Update applied, restarting service...")
		p.restart()
	})
}

// restart bounces the process so the updated binary takes over. Under a
// service manager the manager does the relaunch; in console mode the
// process re-executes itself.
func (p *Program) restart() {
	if !svc.Interactive() {
		if err := updater.RestartService(ServiceName, p.Logger); err != nil {
			p.Logger.Printf("Failed to restart service: %v", err)
		}
		return
	}
	if err := updater.RestartSelf(p.Logger); err != nil {
		p.Logger.Printf("Failed to restart: %v", err)
	}
}
