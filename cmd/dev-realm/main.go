package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"livelyclient/internal/config"
	"livelyclient/internal/devrealm"
	"livelyclient/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	port := flag.Int("port", cfg.DevRealmPort, "listen port")
	secret := flag.String("secret", cfg.DevRealmSecret, "HS256 secret for the token header; empty accepts any token")
	path := flag.String("path", cfg.Path, "Socket.IO sub-path")
	ns := flag.String("namespace", cfg.Namespace, "namespace clients may connect")
	flag.Parse()

	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	realmCfg := devrealm.DefaultConfig()
	realmCfg.Path = *path
	realmCfg.Namespaces = []string{*ns}
	realmCfg.Secret = *secret
	realm := devrealm.NewServer(realmCfg, logger)

	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           realm.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting_dev_realm",
		"addr", addr,
		"path", realmCfg.Path,
		"namespace", *ns,
		"auth", *secret != "",
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		realm.Close()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown_failed", "error", err.Error())
		}
		logger.Info("server_stopped_gracefully")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
}
