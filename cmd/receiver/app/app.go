package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/api"
	"github.com/roman-kulish/radio-receiver/internal/audio"
	"github.com/roman-kulish/radio-receiver/internal/bridge"
	"github.com/roman-kulish/radio-receiver/internal/notify"
	"github.com/roman-kulish/radio-receiver/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	if config.Output.Directory != "" {
		if err = os.MkdirAll(config.Output.Directory, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	b := bridge.New(bridge.WithLogger(logger))
	gate := audio.NewGateConfig(config.Gate.Threshold, config.Gate.Enabled)

	options := []func(*Orchestrator){
		WithDrain(config.API.Addr == ""),
	}

	if config.Notify != nil {
		publisher, err := notify.NewPublisher(*config.Notify, notify.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("creating mqtt publisher: %w", err)
		}
		// The client keeps reconnecting in the background
		if err = publisher.Connect(ctx); err != nil {
			logger.Warn(err.Error())
		}
		defer publisher.Close()

		options = append(options, WithChannelSink(publisher))
	}

	o := NewOrchestrator(config, store, b, gate, logger, options...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiErr := make(chan error, 1)
	if config.API.Addr != "" {
		serverOptions := []func(*api.Server){
			api.WithLogger(logger),
			api.WithGate(gate),
		}
		if o.Receiver() != nil {
			serverOptions = append(serverOptions, api.WithReceiver(o.Receiver()))
		}
		if o.Scanner() != nil {
			serverOptions = append(serverOptions, api.WithScanner(o.Scanner()))
		}

		server := api.New(b, serverOptions...)
		go func() {
			err := server.ListenAndServe(ctx, config.API.Addr)
			if err != nil {
				cancel()
			}
			apiErr <- err
		}()
	} else {
		apiErr <- nil
	}

	err = o.Run(ctx)
	cancel()

	return errors.Join(err, <-apiErr)
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, err
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("sdr_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
