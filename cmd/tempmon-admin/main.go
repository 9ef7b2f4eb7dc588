package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tempmon-server/internal/app"
	"tempmon-server/internal/auth"
	"tempmon-server/internal/config"
	"tempmon-server/internal/mqtt"
)

const usage = `usage: %s <command>
  migrate                  apply pending schema migrations
  token <user-id> [name]   print a session token for user-id
  publish <device-id> <temperature> <humidity>
                           publish one reading to the MQTT broker
`

func main() {
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf(usage, os.Args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	switch args[0] {
	case "migrate":
		_, closeStore, err := app.OpenStore(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if err := closeStore(); err != nil {
			return fmt.Errorf("db close: %w", err)
		}
		_, err = fmt.Fprintln(out, "migrations applied")
		return err
	case "token":
		if len(args) < 2 {
			return fmt.Errorf("token: missing user id")
		}
		user := auth.User{ID: args[1]}
		if len(args) > 2 {
			user.Name = strings.Join(args[2:], " ")
		}
		token, err := auth.IssueSessionToken(user, cfg.SessionJWTSecret, cfg.SessionTokenTTL)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		_, err = fmt.Fprintln(out, token)
		return err
	case "publish":
		return publish(ctx, cfg, logger, args[1:], out)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func publish(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) != 3 {
		return fmt.Errorf("publish: want <device-id> <temperature> <humidity>")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("publish: MQTT_BROKER is not set")
	}
	temperature, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("publish: invalid temperature %q", args[1])
	}
	humidity, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("publish: invalid humidity %q", args[2])
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p := mqtt.NewPublisher(cfg, logger)
	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	defer p.Disconnect()

	msg := mqtt.ReadingMessage{
		DeviceID:    args[0],
		Temperature: &temperature,
		Humidity:    &humidity,
		APIKey:      cfg.DeviceAPIKey,
	}
	if err := p.PublishReading(msg, false); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	_, err = fmt.Fprintf(out, "published reading for %s\n", args[0])
	return err
}
