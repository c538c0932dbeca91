package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roman-kulish/radio-receiver/cmd/receiver/app"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		mode       string
		frequency  float64
		duration   time.Duration
		scan       bool
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&mode, "m", "", "Reception mode. [telemetry-a, telemetry-b, audio, scan-audio]")
	flag.Float64Var(&frequency, "f", 0, "Frequency in MHz (format nnn.nnnn)")
	flag.DurationVar(&duration, "d", 0, "Reception duration, 0 runs until interrupted")
	flag.BoolVar(&scan, "scan", false, "Sweep the configured scanner range instead of receiving")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath, func(c *app.Config) error {
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "f":
				c.Receive.Frequency = frequency
			case "d":
				c.Receive.Duration = app.NewDuration(duration)
			case "scan":
				c.Scanner.Enabled = scan
			}
		})
		if mode == "" {
			return nil
		}
		m, err := sdr.ParseMode(mode)
		if err != nil {
			return err
		}
		c.Receive.Mode = m
		return nil
	})
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
