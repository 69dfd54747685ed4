package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/persistence/impl/memory"
	"golang.org/x/sync/errgroup"

	"github.com/shimmeringbee/lockbridge"
	"github.com/shimmeringbee/lockbridge/console"
	"github.com/shimmeringbee/lockbridge/mqttpub"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"lockbridge.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
	Seed    int64  `help:"Pin the operation outcome sequence (overrides config)"`
}

func main() {
	kong.Parse(&CLI)

	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "lockbridge: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}

	logger := logwrap.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bridge := lockbridge.New(cfg.Capacity, memory.New())
	bridge.WithGoLogger(log.New(os.Stderr, "", log.LstdFlags))

	if e, err := loadRules(cfg.Rules); err != nil {
		return err
	} else if e != nil {
		bridge.WithRules(e)
	}

	if CLI.Verbose {
		bridge.WithIndicatorPins(func(slot int) lockbridge.IndicatorPin {
			return &loggingPin{slot: slot, logger: logger}
		})
	}

	seed := cfg.Seed
	if CLI.Seed != 0 {
		seed = CLI.Seed
	}
	if seed != 0 {
		bridge.WithOutcomeSeed(seed)
	}

	if err := bridge.Start(); err != nil {
		return fmt.Errorf("bridge start: %w", err)
	}
	defer bridge.Stop()

	for _, name := range cfg.InitialLocks {
		if _, err := bridge.AddLock(ctx, name); err != nil {
			logger.LogWarn(ctx, "Failed to add initial lock.", logwrap.Datum("Name", name), logwrap.Err(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	shell := console.New(bridge, os.Stdout)
	shell.WithLogWrapLogger(logger)

	g.Go(func() error {
		return shell.Run(gctx, os.Stdin)
	})

	g.Go(func() error {
		interval := time.Duration(cfg.ReportIntervalMs) * time.Millisecond
		return bridge.RunReporter(gctx, os.Stdout, interval)
	})

	if cfg.MQTT.Broker != "" {
		client, err := mqttpub.Connect(ctx, cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return err
		}

		pub := mqttpub.New(bridge, client, cfg.MQTT.Prefix)
		pub.WithLogWrapLogger(logger)

		g.Go(func() error {
			return pub.Run(gctx)
		})
	}

	return g.Wait()
}
