// Command donaty-chat is a terminal client for one donation chat room.
//
//	donaty-chat [open] -room ROOM [-token TOKEN] [-role ROLE]
//	donaty-chat login -role ROLE -token TOKEN
//	donaty-chat logout
//
// Lines typed on stdin are sent to the room; "/reload" refetches the history
// and "/quit" leaves.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/umar/donaty-chat/internal/auth"
	"github.com/umar/donaty-chat/internal/config"
	"github.com/umar/donaty-chat/internal/logging"
	redisc "github.com/umar/donaty-chat/internal/redis"
)

var errEphemeralCredentials = errors.New("login and logout need a persistent credential store: set credentials.backend to file or redis")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "donaty-chat:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := "open"
	if len(args) > 0 && (args[0] == "open" || args[0] == "login" || args[0] == "logout") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (default $"+config.PathEnv+")")
	apiURL := fs.String("api", "", "backend API base, overrides the config")
	room := fs.String("room", "", "chat room id")
	token := fs.String("token", "", "bearer token, skips the credential store")
	role := fs.String("role", "", "donante, recolector or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *apiURL != "" {
		cfg.Backend.URL = *apiURL
	}

	logging.Init(logging.Config{
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Env:       logging.ParseEnv(cfg.Logging.Env),
		Backend:   logging.Backend(cfg.Logging.Backend),
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Debug:     cfg.Logging.Debug,
		AddSource: cfg.Logging.AddSource,
		Sample:    cfg.Logging.Sample,
	})

	if (cmd == "login" || cmd == "logout") && cfg.Credentials.Backend == config.CredentialsMemory {
		return errEphemeralCredentials
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	switch cmd {
	case "login":
		if err := auth.SaveLogin(ctx, store, roleOf(*role), *token); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "logged in as %s\n", *role)
		return nil
	case "logout":
		if err := auth.Logout(ctx, store); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "logged out")
		return nil
	default:
		return openRoom(ctx, cfg, store, openArgs{
			RoomID: *room,
			Token:  *token,
			Role:   roleOf(*role),
		}, stdin, stdout)
	}
}

// openStore builds the configured credential store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (auth.WritableStore, func(), error) {
	switch cfg.Credentials.Backend {
	case config.CredentialsFile:
		return &auth.FileStore{Path: cfg.Credentials.File}, func() {}, nil
	case config.CredentialsRedis:
		client, err := redisc.InitRedis(ctx, cfg.Credentials.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store := redisc.NewCredentialStore(client, cfg.Credentials.Prefix, cfg.Credentials.TTL)
		return store, func() { client.Close() }, nil
	default:
		return auth.NewMemoryStore(nil), func() {}, nil
	}
}
