package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/frameloom/frameloom-studio/internal/api"
	"github.com/frameloom/frameloom-studio/internal/config"
	"github.com/frameloom/frameloom-studio/internal/db"
	"github.com/frameloom/frameloom-studio/internal/entitlement"
	"github.com/frameloom/frameloom-studio/internal/logging"
	"github.com/frameloom/frameloom-studio/internal/media"
	"github.com/frameloom/frameloom-studio/internal/playback"
	"github.com/frameloom/frameloom-studio/internal/project"
	"github.com/frameloom/frameloom-studio/internal/render"
	"github.com/frameloom/frameloom-studio/internal/store"
	"github.com/frameloom/frameloom-studio/internal/timeline"
	"github.com/frameloom/frameloom-studio/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting frameloom studio",
		"version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                  FRAMELOOM STUDIO v0.1.0                  ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	blobs, err := store.New(cfg.DataDir(), cfg.MoviesDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var licenseClient entitlement.LicenseClient
	if cfg.LicenseURL() != "" {
		licenseKey, err := repo.GetConfig(ctx, "license_token")
		if err == nil && licenseKey != "" {
			httpClient := entitlement.NewHTTPClient(cfg.LicenseURL(), licenseKey, logger)
			httpClient.SetDeviceID(deviceID)
			licenseClient = httpClient
			logger.Info("license service enabled", "base_url", cfg.LicenseURL())
		} else {
			logger.Info("license url set but no license token stored, staying on free tier")
		}
	}
	if licenseClient == nil {
		licenseClient = entitlement.NewStubClient(logger)
	}

	oracle := entitlement.NewOracle(licenseClient, logger)
	refreshCtx, refreshCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := oracle.Refresh(refreshCtx); err != nil {
		logger.Warn("license refresh failed, staying on free tier", "error", err)
	}
	refreshCancel()

	executor := media.NewExecutor(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	doctor := media.NewDoctor(executor, logger)

	probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
	if caps, err := doctor.Refresh(probeCtx); err != nil {
		logger.Warn("initial ffmpeg probe failed, exports disabled until it appears", "error", err)
	} else {
		logger.Info("ffmpeg capabilities detected",
			"version", caps.FFmpegVersion,
			"can_export", caps.CanExport,
		)
	}
	probeCancel()

	projectSvc := project.NewService(repo, blobs, executor, oracle, logger)
	projectSvc.SetDefaultFPS(cfg.DefaultFPS())
	engine := timeline.NewEngine(repo, blobs, oracle, logger)

	pipeline, err := render.NewPipeline(executor, blobs, logger)
	if err != nil {
		return fmt.Errorf("failed to build render pipeline: %w", err)
	}

	runner := render.NewRunner(repo, pipeline, executor, blobs, projectSvc, oracle, doctor, logger, cfg.JobPollInterval())
	go runner.Start(ctx)

	manager := playback.NewManager(ctx, projectSvc, blobs,
		func() playback.AudioPlayer { return playback.NewExecPlayer(logger) },
		playback.NewTickerClock(), logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Version:      config.Version,
		DeviceID:     deviceID,
		Projects:     projectSvc,
		Repository:   repo,
		Timeline:     engine,
		Playback:     manager,
		Streamer:     playback.NewStreamer(logger),
		Blobs:        blobs,
		Runner:       runner,
		Doctor:       doctor,
		Entitlements: oracle,
		Logger:       logger,
		StartTime:    startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logger,
			OnOpen: func() error {
				return openBrowser(fmt.Sprintf("http://127.0.0.1:%d", cfg.Port()))
			},
			OnQuit: quit,
		})
		go refreshTray(ctx, tray, repo, runner)
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()
	manager.StopAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// refreshTray keeps the tray's info lines roughly current.
func refreshTray(ctx context.Context, tray *ui.Tray, repo project.Repository, runner *render.Runner) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := "Idle"
			if runner.GetActiveJobCount(ctx) > 0 {
				status = "Rendering"
			}
			tray.UpdateStatus(status)

			if count, err := repo.CountProjects(ctx); err == nil {
				tray.UpdateProjectsCount(count)
			}
		}
	}
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func ensureDeviceID(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
