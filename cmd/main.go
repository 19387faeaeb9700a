// application-service
//
// Application lifecycle and analytics for tracked job applications.
// Exposes a REST API used by the Gateway to implement:
//   - create/update/delete application        — lifecycle + state machine
//   - application timeline                    — status history + next steps
//   - myApplications query                    — filtered, paginated list
//   - application metrics                     — per-user analytics
//   - upcoming interviews                     — windowed schedule lookup
//
// Publishes EVENT_APPLICATION_CREATED / EVENT_STATUS_CHANGED /
// EVENT_APPLICATION_DELETED to Redis for Gateway SSE forward.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobtrack/application-service/internal/config"
	"jobtrack/application-service/internal/db"
	"jobtrack/application-service/internal/httpserver"
	"jobtrack/application-service/internal/repository/postgres"
	"jobtrack/application-service/internal/tracker"
)

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[application-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[application-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[application-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[application-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[application-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[application-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[application-service] Redis connected ✓")

	// ── Service + HTTP server ────────────────────────────────────────────────
	svc := tracker.NewService(
		postgres.NewApplicationStore(pool),
		postgres.NewJobCatalog(pool),
		rdb,
		cfg.MetricsCacheTTL,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      httpserver.NewHandler(svc).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[application-service] listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[application-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[application-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[application-service] Shutdown error: %v", err)
	}
	log.Println("[application-service] Stopped.")
}
