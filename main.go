package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"PPChat/global/config"
	"PPChat/logger"
	"PPChat/tools"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", tools.GetEnv("PPCHAT_CONFIG", ""), "path to the yaml config file")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("[Main] load config", zap.Error(err))
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.JSON)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("[Main] bootstrap", zap.Error(err))
		os.Exit(1)
	}
	if err := a.run(ctx); err != nil {
		logger.Error("[Main] server stopped", zap.Error(err))
		os.Exit(1)
	}
}
