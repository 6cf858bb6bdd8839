// Command chatstub runs the in-process chat backend on a real port so the
// terminal client can be tried without the production API.
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

	"github.com/umar/donaty-chat/internal/chattest"
	"github.com/umar/donaty-chat/internal/config"
	"github.com/umar/donaty-chat/internal/logging"
	"github.com/umar/donaty-chat/internal/models"
)

type stubConfig struct {
	Port       string `env:"PORT"`
	Secret     string `env:"JWT_SECRET"`
	CORSOrigin string `env:"CORS_ORIGIN"`
	Env        string `env:"APP_ENV"`
}

func main() {
	cfg := stubConfig{
		Port:       "4000",
		Secret:     "dev-secret-change-me",
		CORSOrigin: "http://localhost:5173",
	}
	if err := config.ParseEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.StringVar(&cfg.Port, "port", cfg.Port, "listen port")
	room := flag.String("room", "demo", "room to print sample tokens for")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Service: "chatstub",
		Env:     logging.ParseEnv(cfg.Env),
		Debug:   *debug,
	})
	logger.Info("starting chat stub")

	stub := chattest.NewServer(chattest.Config{
		Secret:     cfg.Secret,
		CORSOrigin: cfg.CORSOrigin,
	})

	for _, u := range []struct {
		id   string
		name string
		role models.Role
	}{
		{"donor-1", "Ana Donante", models.RoleDonor},
		{"collector-1", "Luis Recolector", models.RoleCollector},
		{"admin-1", "Admin", models.RoleAdmin},
	} {
		token, err := stub.IssueToken(u.id, u.name, u.role)
		if err != nil {
			logger.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Printf("donaty-chat -api http://localhost:%s/api -room %s -role %s -token %s\n",
			cfg.Port, *room, u.role, token)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     stub.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("stub listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stub.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("stub stopped")
}
