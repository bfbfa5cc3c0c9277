package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	svc "github.com/kardianos/service"
)

// Manager wraps the OS service control operations.
type Manager struct {
	service svc.Service
	logger  svc.Logger
	program *Program
}

func NewManager(prg *Program) (*Manager, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	cfg := NewServiceConfig(exePath, buildServiceArgs(prg))
	s, err := svc.New(prg, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	logger, err := s.Logger(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get service logger: %w", err)
	}

	return &Manager{service: s, logger: logger, program: prg}, nil
}

// buildServiceArgs reconstructs the command line the service should start
// with, so an installed service mirrors the flags it was installed under.
func buildServiceArgs(prg *Program) []string {
	args := []string{"-service", "run", "-port=" + strconv.Itoa(prg.Port)}

	downloadDir := prg.DownloadDir
	if !filepath.IsAbs(downloadDir) {
		if abs, err := filepath.Abs(downloadDir); err == nil {
			downloadDir = abs
		}
	}
	args = append(args, "-download="+downloadDir)

	if prg.ProcessedDir != "" {
		if abs, err := filepath.Abs(prg.ProcessedDir); err == nil {
			args = append(args, "-processed="+abs)
		} else {
			args = append(args, "-processed="+prg.ProcessedDir)
		}
	}
	if prg.AccountsPath != "" {
		if abs, err := filepath.Abs(prg.AccountsPath); err == nil {
			args = append(args, "-accounts="+abs)
		} else {
			args = append(args, "-accounts="+prg.AccountsPath)
		}
	}
	if prg.HistoryPath != "" {
		args = append(args, "-history="+prg.HistoryPath)
	}

	args = append(args, "-headless="+strconv.FormatBool(prg.Headless))
	args = append(args, "-auto-update="+strconv.FormatBool(prg.AutoUpdate))
	if prg.UpdateInterval != "" {
		args = append(args, "-update-interval="+prg.UpdateInterval)
	}
	if p := prg.MonthlySpec; p != "" {
		args = append(args, "-schedule="+p)
	}
	return args
}

func (m *Manager) Install() error   { return m.service.Install() }
func (m *Manager) Uninstall() error { return m.service.Uninstall() }
func (m *Manager) Start() error     { return m.service.Start() }
func (m *Manager) Stop() error      { return m.service.Stop() }

// Run hands execution to the service manager (called by the SCM).
func (m *Manager) Run() error { return m.service.Run() }

func (m *Manager) Status() (svc.Status, error) { return m.service.Status() }

// RunServiceCommand dispatches one service management command.
func RunServiceCommand(cmd string, prg *Program, logger *log.Logger) error {
	mgr, err := NewManager(prg)
	if err != nil {
		return err
	}

	switch cmd {
	case "install":
		if err := mgr.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}
		logger.Println("Service installed successfully")
		logger.Printf("Service name: %s", ServiceName)
		logger.Println("To start the service, run: autobill -service start")

	case "uninstall":
		_ = mgr.Stop()
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}
		logger.Println("Service uninstalled successfully")

	case "start":
		if err := mgr.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		logger.Println("Service started successfully")

	case "stop":
		if err := mgr.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		logger.Println("Service stopped successfully")

	case "restart":
		_ = mgr.Stop()
		if err := mgr.Start(); err != nil {
			return fmt.Errorf("failed to restart service: %w", err)
		}
		logger.Println("Service restarted successfully")

	case "status":
		status, err := mgr.Status()
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}
		printStatus(status, logger)

	case "run":
		return mgr.Run()

	default:
		return fmt.Errorf("unknown service command: %s\nValid commands: install, uninstall, start, stop, restart, status", cmd)
	}
	return nil
}

func printStatus(status svc.Status, logger *log.Logger) {
	switch status {
	case svc.StatusRunning:
		logger.Println("Service status: running")
	case svc.StatusStopped:
		logger.Println("Service status: stopped")
	default:
		logger.Println("Service status: unknown")
	}
}
