package main

import (
	"context"
	"fmt"
	"os"

	"yarukoto/internal/cache"
	"yarukoto/internal/command"
	"yarukoto/internal/config"
	"yarukoto/internal/logging"
	"yarukoto/internal/storage"
	"yarukoto/internal/ui"
)

func main() {
	configPath := config.ResolveConfigPath()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.OpenFile(cfg.Log.Path)
	if err != nil {
		fmt.Printf("failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := logging.New("todo", cfg.Log, logFile)

	store, err := storage.Open(cfg.Database)
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var listCache *cache.ListCache
	if cfg.Redis.Enabled() {
		rdb, err := cache.Connect(context.Background(), cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("list cache disabled")
		} else {
			listCache = cache.NewListCache(rdb, cfg.Redis.TTL())
			defer listCache.Close()
		}
	}
	lister := cache.NewLister(store, listCache, log)
	commands := command.New(store, command.WithInvalidator(lister), command.WithLogger(log))

	if err := ui.Run(commands, lister, cfg, configPath, log); err != nil {
		log.WithError(err).Error("program exited with error")
		fmt.Printf("error running program: %v\n", err)
		os.Exit(1)
	}
}
