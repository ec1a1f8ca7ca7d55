package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"yarukoto/internal/cache"
	"yarukoto/internal/command"
	"yarukoto/internal/config"
	"yarukoto/internal/logging"
	"yarukoto/internal/storage"
	"yarukoto/internal/web"
)

func main() {
	cfg, err := config.LoadOrCreate(config.ResolveConfigPath())
	log := logging.New("todo-server", cfg.Log, os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	store, err := storage.Open(cfg.Database)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.Database.Driver).Fatal("failed to open database")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var listCache *cache.ListCache
	if cfg.Redis.Enabled() {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("list cache disabled")
		} else {
			listCache = cache.NewListCache(rdb, cfg.Redis.TTL())
			defer listCache.Close()
			log.WithField("addr", cfg.Redis.Addr).Info("list cache enabled")
		}
	}
	lister := cache.NewLister(store, listCache, log)
	commands := command.New(store, command.WithInvalidator(lister), command.WithLogger(log))

	srv := web.New(cfg.HTTP, web.Deps{
		Lister:   lister,
		Store:    store,
		Commands: commands,
		Log:      log,
	})
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
	log.Info("server stopped")
}
