package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aeris-platform/aeris/internal/auth"
	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geocode"
	"github.com/aeris-platform/aeris/internal/httpapi"
	"github.com/aeris-platform/aeris/internal/objectstore"
	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/route"
	"github.com/aeris-platform/aeris/internal/upes"
	"github.com/aeris-platform/aeris/internal/weather"
	"github.com/aeris-platform/aeris/pkg/config"
	"github.com/aeris-platform/aeris/pkg/logging"
)

func main() {
	log := logging.New("aeris-api")
	entry := logging.WithService(log, "api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations", entry.WithField("component", "migrations")); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	entry.Info("database connected and migrated")

	redisClient := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	objects, err := objectstore.New(
		cfg.Object.Provider, cfg.Object.EndpointURL, cfg.Object.Bucket,
		cfg.Object.Region, cfg.Object.AccessKeyID, cfg.Object.SecretKey, cfg.Object.LocalFallbackDir,
	)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}

	issuer := auth.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.AccessTokenExpireMins)
	wx := weather.New(cfg.Weather.BaseURL, cfg.Weather.APIKey)
	geo_ := geocode.New(cfg.Geocode.BaseURL, cfg.Geocode.APIKey)

	overpass := route.NewOverpassSource("")
	latestGrid := func() (*raster.Grid, error) { return readLatestFinalGrid(cfg.UPES.OutputBase) }
	routeEngine := route.NewEngine(overpass, latestGrid, redisClient, cfg.Route.OSMBufferKM, entry.WithField("component", "route"))

	server := &httpapi.Server{
		DB: db, Cache: redisClient, Issuer: issuer,
		Weather: wx, Geocode: geo_, Objects: objects,
		RouteEngine: routeEngine, RouteEnabled: cfg.Route.Enabled,
		UPESOutput: cfg.UPES.OutputBase, Log: entry,
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		entry.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

func readLatestFinalGrid(outputBase string) (*raster.Grid, error) {
	path, err := upes.LatestFinalScorePath(outputBase)
	if err != nil || path == "" {
		return nil, err
	}
	return raster.ReadFile(path)
}
