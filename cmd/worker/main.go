package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aeris-platform/aeris/internal/alerts"
	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/harmony"
	"github.com/aeris-platform/aeris/internal/objectstore"
	"github.com/aeris-platform/aeris/internal/queue"
	"github.com/aeris-platform/aeris/internal/raster"
	"github.com/aeris-platform/aeris/internal/scheduler"
	"github.com/aeris-platform/aeris/internal/upes"
	"github.com/aeris-platform/aeris/internal/weather"
	"github.com/aeris-platform/aeris/pkg/config"
	"github.com/aeris-platform/aeris/pkg/logging"
)

// main runs AERIS's beat-scheduled pipeline: hourly ingestion, UPES scoring,
// saved-route exposure scoring, and alert evaluation. One scheduler
// dispatches all four stages against a shared set of collaborators, so a
// single process owns the whole beat rather than splitting each stage into
// its own service.
func main() {
	log := logging.New("aeris-worker")
	entry := logging.WithService(log, "worker")

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

	redisClient := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	objects, err := objectstore.New(
		cfg.Object.Provider, cfg.Object.EndpointURL, cfg.Object.Bucket,
		cfg.Object.Region, cfg.Object.AccessKeyID, cfg.Object.SecretKey, cfg.Object.LocalFallbackDir,
	)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}

	bbox := geo.BoundingBox{
		West: cfg.Harmony.BBoxWest, South: cfg.Harmony.BBoxSouth,
		East: cfg.Harmony.BBoxEast, North: cfg.Harmony.BBoxNorth,
	}

	harmonyClient := harmony.New(harmony.Config{
		BaseURL:           cfg.Harmony.BaseURL,
		BearerToken:       cfg.Harmony.BearerToken,
		EarthdataUsername: cfg.Harmony.EarthdataUsername,
		EarthdataPassword: cfg.Harmony.EarthdataPassword,
		TokenURL:          cfg.Harmony.URSATokenURL,
		BBox:              bbox,
	})
	ingestWorker := harmony.NewWorker(harmonyClient, db, objects, 0, 0, entry.WithField("component", "ingest"))

	wx := weather.New(cfg.Weather.BaseURL, cfg.Weather.APIKey)

	upesEngine := upes.NewEngine(db, wx, redisClient, cfg.UPES.OutputBase, bbox,
		cfg.UPES.GridResolutionDeg, cfg.UPES.TrafficAlpha, cfg.UPES.EMALambda, cfg.UPES.EMAEnabled,
		entry.WithField("component", "upes"))

	alertPipeline := alerts.NewPipeline(db, wx,
		func() (*raster.Grid, error) { return readLatestFinalGrid(cfg.UPES.OutputBase) },
		cfg.Alerts.N8NWebhookURL, cfg.Alerts.WindSpeedMinKPH, cfg.Alerts.WindAngleDeg,
		entry.WithField("component", "alerts"))

	var producer *queue.Producer
	var consumer *queue.Consumer
	if len(cfg.Queue.Brokers) > 0 && cfg.Queue.Brokers[0] != "" {
		producer = queue.NewProducer(cfg.Queue.Brokers, cfg.Queue.TopicIngestion)
		defer producer.Close()

		if err := queue.CreateTopic(cfg.Queue.Brokers, cfg.Queue.TopicIngestion, cfg.Queue.NumPartitions, 1); err != nil {
			entry.Debugf("create topic %s: %v (already exists is expected past the first run)", cfg.Queue.TopicIngestion, err)
		}
		consumer = queue.NewConsumer(cfg.Queue.Brokers, cfg.Queue.TopicIngestion, "aeris-worker-ondemand")
		defer consumer.Close()
	}

	runUPES := func(end time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		start := end.Add(-time.Hour)
		result, err := upesEngine.Run(ctx, start, end)
		if err != nil {
			entry.Warnf("upes run for %s failed: %v", end.Format(time.RFC3339), err)
			return
		}
		if producer != nil {
			_ = producer.Publish(ctx, end.Format(time.RFC3339), queue.EventUPESReady, queue.UPESReadyPayload{
				WindowEnd: end, PresentCells: result.PresentCells,
			})
		}
		entry.Infof("upes run for %s wrote %s (%d/%d cells present)",
			end.Format(time.RFC3339), result.Paths.FinalScoreTIF, result.PresentCells, result.Log.CellCount)
	}

	runExposureRecompute := func(asOf time.Time) {
		grid, err := readLatestFinalGrid(cfg.UPES.OutputBase)
		if err != nil {
			entry.Warnf("recompute_saved_route_exposure: could not read latest raster: %v", err)
			return
		}
		if grid == nil {
			entry.Warn("recompute_saved_route_exposure: skipped, no final-score raster exists yet")
			return
		}

		results, err := alerts.ComputeSavedRouteScores(db, grid, asOf)
		if err != nil {
			entry.Warnf("recompute_saved_route_exposure: %v", err)
			return
		}
		entry.Infof("recompute_saved_route_exposure: scored %d routes", len(results))
	}

	sched := scheduler.New(entry)

	sched.Register(scheduler.Task{
		Name: "fetch_tempo_hourly", MinuteOfHour: cfg.Scheduler.IngestionMinute,
		Run: func(rc scheduler.RunContext) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
			defer cancel()

			start, end := harmony.HourWindow(rc.ScheduledFor)
			result := ingestWorker.Run(ctx, start, end)

			if result.TotalInserted > 0 {
				redisClient.Set(ctx, cache.KeyTempoLastUpdate, end.UTC().Format(time.RFC3339), cache.TTLTempoLastUpdate)
				if producer != nil {
					_ = producer.Publish(ctx, end.Format(time.RFC3339), queue.EventIngestionCompleted, queue.IngestionCompletedPayload{
						WindowStart: start, WindowEnd: end, TotalInserted: result.TotalInserted,
					})
				}
				entry.Infof("ingestion window %s-%s inserted %d rows across %d gases",
					start.Format(time.RFC3339), end.Format(time.RFC3339), result.TotalInserted, len(result.Gases))
			} else {
				entry.Warnf("ingestion window %s-%s produced no rows", start.Format(time.RFC3339), end.Format(time.RFC3339))
			}
		},
	})

	sched.Register(scheduler.Task{
		Name: "compute_upes_hourly", MinuteOfHour: cfg.Scheduler.UPESMinute,
		Run: func(rc scheduler.RunContext) {
			runUPES(rc.ScheduledFor.UTC().Truncate(time.Hour))
		},
	})

	sched.Register(scheduler.Task{
		Name: "recompute_saved_route_exposure", MinuteOfHour: cfg.Scheduler.ExposureMinute,
		Run: func(rc scheduler.RunContext) {
			runExposureRecompute(rc.ScheduledFor.UTC())
		},
	})

	sched.Register(scheduler.Task{
		Name: "run_alert_pipeline", MinuteOfHour: cfg.Scheduler.AlertsMinute,
		Run: func(rc scheduler.RunContext) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			scored, err := latestScoredRoutes(db)
			if err != nil {
				entry.Warnf("run_alert_pipeline: could not load scored routes: %v", err)
				return
			}
			if len(scored) == 0 {
				entry.Info("run_alert_pipeline: skipped, no scored routes yet")
				return
			}

			fired := alertPipeline.Run(ctx, scored, rc.ScheduledFor.UTC())
			if producer != nil {
				for _, t := range fired {
					_ = producer.Publish(ctx, t.Route.ID, queue.EventAlertTriggered, queue.AlertTriggeredPayload{
						UserID: t.Route.UserID, RouteID: t.Route.ID, AlertType: t.AlertType, ScoreAfter: t.After,
					})
				}
			}
			entry.Infof("run_alert_pipeline: %d alerts fired across %d routes", len(fired), len(scored))
		},
	})

	sched.Start()
	entry.Info("worker scheduler started")

	onDemandCtx, cancelOnDemand := context.WithCancel(context.Background())
	if consumer != nil {
		go runOnDemandConsumer(onDemandCtx, consumer, runUPES, runExposureRecompute, entry)
		entry.Info("on-demand ingestion-event consumer started")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down")
	cancelOnDemand()
	sched.Stop()
}

// runOnDemandConsumer reacts to ingestion_completed events with inserted
// rows by immediately running the UPES and exposure-recompute stages,
// instead of waiting for their next fixed minute-of-hour beat.
func runOnDemandConsumer(ctx context.Context, consumer *queue.Consumer, runUPES, runExposureRecompute func(time.Time), log *logrus.Entry) {
	for {
		evt, msg, err := consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("on-demand consumer: %v", err)
			continue
		}

		if evt.Type == queue.EventIngestionCompleted {
			var payload queue.IngestionCompletedPayload
			if err := json.Unmarshal(evt.Payload, &payload); err != nil {
				log.Warnf("on-demand consumer: decode ingestion_completed payload: %v", err)
			} else if payload.TotalInserted > 0 {
				log.Infof("on-demand trigger: ingestion reported %d inserts, running upes and exposure recompute", payload.TotalInserted)
				runUPES(payload.WindowEnd)
				runExposureRecompute(payload.WindowEnd)
			}
		}

		if err := consumer.Commit(ctx, msg); err != nil {
			log.Warnf("on-demand consumer: commit offset: %v", err)
		}
	}
}

func readLatestFinalGrid(outputBase string) (*raster.Grid, error) {
	path, err := upes.LatestFinalScorePath(outputBase)
	if err != nil || path == "" {
		return nil, err
	}
	return raster.ReadFile(path)
}

// latestScoredRoutes builds the alert pipeline's input from each saved
// route's most recently written exposure-history row, so run_alert_pipeline
// evaluates the sample recompute_saved_route_exposure already recorded at
// its earlier minute (20 by default) instead of re-sampling the raster itself.
func latestScoredRoutes(db *database.DB) ([]alerts.ScoreResult, error) {
	routes, err := db.ListAllSavedRoutes()
	if err != nil {
		return nil, err
	}

	out := make([]alerts.ScoreResult, 0, len(routes))
	for _, r := range routes {
		history, err := db.RecentRouteHistory(r.ID, 1)
		if err != nil || len(history) == 0 {
			continue
		}
		out = append(out, alerts.ScoreResult{Route: r, MeanUPES: history[0].UPESScore, MaxUPES: history[0].MaxUPESAlongRoute})
	}
	return out, nil
}
