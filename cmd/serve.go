package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tunevault/cache"
	"tunevault/config"
	"tunevault/core/dispatch"
	"tunevault/core/engine"
	"tunevault/core/fetch"
	"tunevault/core/resolve"
	"tunevault/core/session"
	"tunevault/db"
	"tunevault/logger"
	"tunevault/model"
	"tunevault/repository"
	"tunevault/server"
	"tunevault/storage"

	"github.com/spf13/cobra"
)

var flushCache bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the media cache and playback queue engine",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flushCache, "flush-cache", false,
		"drop every cache record at startup (backing files are kept, see 'cache clear')")
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		logger.Fatal("failed to create download directory", logger.ErrorField(err))
	}

	if err := db.Connect(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(&model.CacheRecord{}); err != nil {
		logger.Fatal("failed to migrate database", logger.ErrorField(err))
	}

	if cfg.RedisHost != "" {
		if err := db.ConnectRedis(cfg); err != nil {
			logger.Warn("redis unavailable, hot index layer disabled", logger.ErrorField(err))
		} else {
			defer db.CloseRedis()
		}
	}

	repo := repository.NewMySQLCacheRecordRepository(db.DB)

	if flushCache || cfg.FlushCacheOnStart {
		// Deliberate full-invalidation point. Backing files stay on disk,
		// so every surviving reference is a stale pointer until the next
		// fetch re-verifies it.
		n, err := repo.DeleteAll(context.Background())
		if err != nil {
			logger.Fatal("failed to flush cache records", logger.ErrorField(err))
		}
		logger.Warn("flushed all cache records at startup; artifact files were NOT deleted",
			logger.Int64("records", n))
	}

	index := cache.NewIndex(repo, db.RedisClient, cfg.IndexTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := cache.NewWatcher(index, cfg.DownloadDir)
	go watcher.Run(ctx)

	var archive fetch.ArchiveFunc
	if cfg.MinioEnabled {
		store, err := storage.NewArchive(cfg)
		if err != nil {
			logger.Warn("artifact archive unavailable", logger.ErrorField(err))
		} else {
			archive = store.PutArtifact
		}
	}

	downloader := fetch.NewYtDlpDownloader(cfg.YtDlpPath, cfg.FFmpegPath, cfg.AudioBitrate)
	pipeline := fetch.NewPipeline(index, repo, downloader, cfg.DownloadDir, archive)

	resolver := resolve.NewResolver(resolve.NewYouTubeProvider(cfg.SearchAPIURL, cfg.SearchAPIKey))

	dispatcher := dispatch.NewDispatcher(dispatch.LogSender{}, cfg.DeliveryWorkers, cfg.MaxSendBytes)
	defer dispatcher.Close()

	loop := session.NewLoop(16)
	loop.Start()
	defer loop.Stop()

	hub := server.NewStatusHub()
	sessions := session.NewManager(loop, session.LogStreamer{}, hub.Broadcast)
	defer sessions.Close()

	eng := engine.NewEngine(resolver, pipeline, dispatcher, sessions, engine.LogMessenger{},
		cfg.DeliveryWorkers, cfg.DownloadTimeout)
	defer eng.Close()

	srv := server.New(cfg.HTTPAddr, eng, sessions, hub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server failed", logger.ErrorField(err))
		}
	case sig := <-stop:
		logger.Info("shutting down", logger.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", logger.ErrorField(err))
		}
	}
}
