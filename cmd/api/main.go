package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/config"
	"nimbus.cloud/internal/httpapi"
	"nimbus.cloud/internal/obs"
	"nimbus.cloud/internal/store/pg"
	"nimbus.cloud/internal/store/redisreg"
)

var version = "0.3.1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	rdb := redisreg.NewClient(cfg.RedisAddr, cfg.RedisPassword)

	// markers must outlive every token they can invalidate
	registry, err := redisreg.New(rdb, cfg.AccessTokenValidity+cfg.RevocationTTLBuffer)
	if err != nil {
		log.Fatalf("revocation registry: %v", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	permissionIDs, resourceTypeIDs, err := store.PermissionCatalog(startupCtx)
	cancelStartup()
	if err != nil {
		log.Fatalf("load permission catalog: %v", err)
	}
	table, err := auth.NewTable(permissionIDs, resourceTypeIDs)
	if err != nil {
		log.Fatalf("permission table: %v", err)
	}

	engine, err := auth.NewEngine(table, cfg.GodUserID)
	if err != nil {
		log.Fatalf("authorization engine: %v", err)
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, store,
		auth.WithIssuerName(cfg.Issuer),
		auth.WithAudience(cfg.Audience),
		auth.WithAccessTokenValidity(cfg.AccessTokenValidity),
	)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	validator, err := auth.NewValidator(cfg.JWTSecret, registry, store,
		auth.WithValidatorIssuer(cfg.Issuer),
		auth.WithValidatorAudience(cfg.Audience),
		auth.WithAPITokenCacheTTL(cfg.APITokenCacheTTL),
	)
	if err != nil {
		log.Fatalf("token validator: %v", err)
	}

	resolver, err := auth.NewResolver(store, store)
	if err != nil {
		log.Fatalf("permission resolver: %v", err)
	}

	sessions, err := auth.NewService(store, store, resolver, issuer, registry)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	roles, err := auth.NewRoleService(store, table)
	if err != nil {
		log.Fatalf("role service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB(), Redis: rdb}, version, httpapi.Deps{
		Validator: validator,
		Engine:    engine,
		Sessions:  sessions,
		Roles:     roles,
		Issuer:    issuer,
		Tokens:    store,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting nimbus-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	_ = rdb.Close()
	log.Println("Stopped")
}
