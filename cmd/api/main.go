package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskboard/api/internal/app"
	"taskboard/api/internal/blob"
	"taskboard/api/internal/cache"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/kanban"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	adapter := store.NewPostgresStore(db)

	var boardCache *cache.BoardCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		boardCache, err = cache.NewBoardCache(cfg.RedisURL, time.Duration(cfg.CacheTTLSecs)*time.Second)
		if err != nil {
			log.Printf("WARNING: redis unavailable, board cache disabled: %v", err)
			boardCache = nil
		} else {
			defer boardCache.Close()
		}
	}

	var blobs blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := blob.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		blobs = minioStore
	} else {
		log.Printf("No MinIO endpoint configured, storing attachments inline")
		blobs = blob.NewDataURLStore()
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	memorySearch := search.NewMemory()
	searchService := search.NewService(meiliClient, memorySearch)

	var mail *email.Service
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		mail = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	}

	service := kanban.NewWithCollaborators(adapter, blobs, cfg.DefaultTaskLimit, boardCache, searchService, mail)
	if err := service.Load(ctx); err != nil {
		log.Fatalf("board load failed: %v", err)
	}
	memorySearch.SetSource(service.Boards)
	reindexAll(service, searchService)

	httpServer := app.NewHTTPServer(service, searchService, []byte(cfg.JWTSecret), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Taskboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func reindexAll(service *kanban.Service, searchService *search.Service) {
	var tasks []search.TaskRecord
	var comments []search.CommentRecord
	for _, board := range service.Boards() {
		for _, column := range board.Columns {
			for _, task := range column.Tasks {
				tasks = append(tasks, search.TaskRecordFrom(board, task))
				for _, comment := range task.Comments {
					comments = append(comments, search.CommentRecordFrom(board, task, comment))
				}
			}
		}
	}
	searchService.ReindexAll(tasks, comments)
}
