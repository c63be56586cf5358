package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"stomp-broker/internal/broker"
	"stomp-broker/internal/config"
	"stomp-broker/internal/logging"
	"stomp-broker/internal/metrics"
	"stomp-broker/internal/server"
	"stomp-broker/internal/store"
)

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stomp-broker: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DB, logger)
	if err != nil {
		logger.Fatal("failed to open persistence adapter", zap.Error(err))
	}

	m := metrics.NewBroker()
	b := broker.New(st, logger, m)
	sys := metrics.NewSystem()

	srv := server.New(cfg.Port, cfg.MetricsPort, b, sys, logger)
	if err := srv.Run(); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}
