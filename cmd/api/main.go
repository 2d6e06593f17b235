package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"sensorium.org/internal/auth"
	"sensorium.org/internal/config"
	"sensorium.org/internal/httpapi"
	"sensorium.org/internal/iot"
	"sensorium.org/internal/migrations"
	"sensorium.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "unknown"
)

func main() {
	cfg := config.MustLoad()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrateUp(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	issuer, err := auth.NewIssuer([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	blacklist := auth.NewBlacklist(auth.WithSweepHook(func(remaining int) {
		obs.SetRevokedTokens(remaining)
	}))
	authSvc := auth.NewService(auth.NewPGStore(db), issuer, blacklist)
	iotSvc := iot.NewService(iot.NewPGStore(db), auth.NewPGStore(db), authSvc)

	go blacklist.Run(ctx, cfg.Auth.SweepInterval)

	api := httpapi.New(authSvc, iotSvc, httpapi.ReadyProbe{DB: db}, httpapi.Options{
		Version:        cfg.Version,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("starting sensorium-api %s (%s) on %s", version, cfg.Env, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
	log.Println("stopped")
}

func migrateUp(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
