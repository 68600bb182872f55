package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/hardcover-sync/internal/config"
	"github.com/mrlokans/hardcover-sync/internal/database"
	"github.com/mrlokans/hardcover-sync/internal/database/books"
	"github.com/mrlokans/hardcover-sync/internal/database/links"
	"github.com/mrlokans/hardcover-sync/internal/database/syncruns"
	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
	http_controllers "github.com/mrlokans/hardcover-sync/internal/http"
	"github.com/mrlokans/hardcover-sync/internal/matcher"
	"github.com/mrlokans/hardcover-sync/internal/scheduler"
	"github.com/mrlokans/hardcover-sync/internal/syncer"
	"github.com/mrlokans/hardcover-sync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 1 second.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Hardcover Sync v%s", version)

	if cfg.Hardcover.Token == "" {
		log.Printf("WARNING: Hardcover token is not set. Matching and sync will fail until 'HARDCOVER_TOKEN' is configured.")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	bookRepo := books.NewRepository(db.DB)
	linkRepo := links.NewRepository(db.DB)
	runRepos := map[syncer.Direction]*syncruns.Repository{
		syncer.DirectionToRemote:   syncruns.NewRepository(db.DB, entities.RunDirectionToRemote),
		syncer.DirectionFromRemote: syncruns.NewRepository(db.DB, entities.RunDirectionFromRemote),
	}

	// The shared client paces and retries every remote call. Scheduled runs
	// respect SYNC_DRY_RUN; interactive runs choose per request.
	client := hardcover.NewClient(hardcover.Config{
		APIURL:            cfg.Hardcover.APIURL,
		Token:             cfg.Hardcover.Token,
		Timeout:           cfg.Hardcover.Timeout,
		MaxRetries:        cfg.Hardcover.MaxRetries,
		RequestsPerMinute: cfg.Hardcover.RequestsPerMinute,
		DryRun:            cfg.Sync.DryRun,
	})

	orch := syncer.NewOrchestrator(
		client,
		syncer.NewEngine(cfg),
		matcher.NewMatcher(client, linkRepo),
		bookRepo,
		linkRepo,
		runRepos,
	)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewSyncRunQueue(orch),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Start the periodic sync scheduler when both it and the queue are up
	var syncScheduler *scheduler.HardcoverSyncScheduler
	if taskClient != nil {
		syncScheduler = scheduler.NewHardcoverSyncScheduler(cfg, taskClient)
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Printf("WARNING: Failed to start sync scheduler: %v", err)
		}
	}

	var lists *syncer.ListManager
	if cfg.Hardcover.Token != "" {
		lists = syncer.NewListManager(client)
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Database:        db,
		BookStore:       bookRepo,
		LinkStore:       linkRepo,
		Resolver:        matcher.NewMatcher(client, linkRepo),
		SyncRunner:      orch,
		RunStore:        runRepos[syncer.DirectionToRemote],
		Lists:           lists,
		TaskClient:      taskClient,
		TokenConfigured: cfg.Hardcover.Token != "",
		Version:         version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
