package updater

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// RestartService bounces the managed service after an update was applied.
func RestartService(serviceName string, logger *log.Logger) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("service restart only supported on Windows")
	}

	logger.Println("Scheduling service restart...")
	go func() {
		// Let the in-flight request finish first.
		time.Sleep(2 * time.Second)

		if err := exec.Command("sc", "stop", serviceName).Run(); err != nil {
			logger.Printf("Warning: failed to stop service: %v", err)
		}
		time.Sleep(3 * time.Second)
		if err := exec.Command("sc", "start", serviceName).Run(); err != nil {
			logger.Printf("Warning: failed to start service: %v", err)
		}
	}()
	return nil
}

// RestartSelf re-executes the current binary with the same arguments, for
// console mode where no service manager exists.
func RestartSelf(logger *log.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	logger.Println("Restarting application...")
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}

	os.Exit(0)
	return nil
}
