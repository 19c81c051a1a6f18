package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/cshum/vipsgen/vips"
	"github.com/joho/godotenv"

	"github.com/zopieux/rthumbd/internal/broker"
	"github.com/zopieux/rthumbd/internal/bus"
	"github.com/zopieux/rthumbd/internal/bus/dbusx"
	"github.com/zopieux/rthumbd/internal/config"
	"github.com/zopieux/rthumbd/internal/logger"
	"github.com/zopieux/rthumbd/internal/provcache"
	"github.com/zopieux/rthumbd/internal/provider/image"
	"github.com/zopieux/rthumbd/internal/registry"
)

func main() {
	logger.SetOutput(os.Stderr)
	logger.SetFlags(0)
	logger.InitFromEnv()

	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("[rthumbd] Failed to load configuration: %v", err)
	}

	logger.Infof("[rthumbd] Starting thumbnail service…")
	logger.Infof("[rthumbd] Cache root: %s", cfg.CacheRoot)

	vips.Startup(nil)
	defer vips.Shutdown()

	provCache, err := provcache.New(4096, 0)
	if err != nil {
		logger.Fatalf("[rthumbd] Failed to create provenance cache: %v", err)
	}
	defer provCache.Close()

	reg := registry.NewBuilder(cfg.CacheRoot, cfg.ChunkSize).
		Register(image.New(provCache)).
		Build()

	b := broker.New(reg, broker.Config{
		RequestChannelCapacity: cfg.RequestChannelCapacity,
		ReplyChannelCapacity:   cfg.ReplyChannelCapacity,
		WorkerPoolSize:         cfg.WorkerPoolSize,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go b.Run(ctx)

	core := bus.NewCoreServer(b, reg)
	adapter, err := dbusx.Connect(core)
	if err != nil {
		logger.Fatalf("[rthumbd] Failed to connect to session bus: %v", err)
	}
	defer adapter.Close()

	go dbusx.Relay(ctx, adapter, b.Replies())

	logger.Infof("[rthumbd] Registered as %s at %s", bus.WellKnownName, bus.ObjectPath)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warnf("[rthumbd] sd_notify failed: %v", err)
	} else if sent {
		logger.Debugf("[rthumbd] sent READY=1 to the service manager")
	}

	<-ctx.Done()
	logger.Infof("[rthumbd] Shutting down…")
	b.Close()
}
