package harmony

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/objectstore"
	"github.com/aeris-platform/aeris/internal/rasternorm"
)

// GridWriter is the subset of *database.DB the ingestion worker needs.
type GridWriter interface {
	BulkInsertPollutionGridCells(cells []database.PollutionGridCell) error
}

// Worker runs one hourly ingestion pass across all five gases.
type Worker struct {
	client    *Client
	db        GridWriter
	objects   *objectstore.Store
	maxCells  int
	chunkSize int
	log       *logrus.Entry
}

// NewWorker builds a Worker.
func NewWorker(client *Client, db GridWriter, objects *objectstore.Store, maxCells, chunkSize int, log *logrus.Entry) *Worker {
	if maxCells <= 0 {
		maxCells = rasternorm.DefaultMaxCells
	}
	if chunkSize <= 0 {
		chunkSize = rasternorm.DefaultChunkSize
	}
	return &Worker{client: client, db: db, objects: objects, maxCells: maxCells, chunkSize: chunkSize, log: log}
}

// GasResult summarizes one gas's ingestion outcome.
type GasResult struct {
	Gas      domain.GasType
	Inserted int
	Skipped  bool
	Err      error
}

// RunResult summarizes one full hourly pass.
type RunResult struct {
	WindowStart, WindowEnd time.Time
	Gases                  []GasResult
	TotalInserted          int
}

// HourWindow floors `now` to the last completed UTC hour boundary, returning
// the half-open [start, end) window ingestion fetches.
func HourWindow(now time.Time) (start, end time.Time) {
	end = now.UTC().Truncate(time.Hour)
	start = end.Add(-time.Hour)
	return
}

// Run fetches, normalizes, and persists every gas's raster for one hour
// window. A per-gas failure is logged and skipped; it never aborts the
// other gases.
func (w *Worker) Run(ctx context.Context, windowStart, windowEnd time.Time) RunResult {
	result := RunResult{WindowStart: windowStart, WindowEnd: windowEnd}

	for _, gas := range domain.AllGases {
		gr := w.runGas(ctx, gas, windowStart, windowEnd)
		result.Gases = append(result.Gases, gr)
		result.TotalInserted += gr.Inserted
	}
	return result
}

func (w *Worker) runGas(ctx context.Context, gas domain.GasType, start, end time.Time) GasResult {
	raw, err := w.client.FetchGas(ctx, gas, start, end)
	if errors.Is(err, ErrNoGranules) {
		w.logf("gas %s: no matching granules for %s-%s, skipping", gas, start, end)
		return GasResult{Gas: gas, Skipped: true}
	}
	if err != nil {
		w.logf("gas %s: fetch failed: %v", gas, err)
		return GasResult{Gas: gas, Err: err}
	}

	if w.objects != nil && w.objects.Configured() {
		key := fmt.Sprintf("audit/geotiff/%s/%s_%02d.tif", start.Format("2006-01-02"), gas, start.Hour())
		if _, err := w.objects.Upload(key, raw); err != nil {
			w.logf("gas %s: audit upload failed (continuing): %v", gas, err)
		}
	}

	grid, err := decodeGeoTIFF(raw)
	if err != nil {
		w.logf("gas %s: decode failed: %v", gas, err)
		return GasResult{Gas: gas, Err: err}
	}

	inserted := 0
	normErr := rasternorm.Normalize(grid, gas, end, w.maxCells, w.chunkSize, func(rows []rasternorm.Row) error {
		cells := rasternorm.ToGridCells(rows)
		if err := w.db.BulkInsertPollutionGridCells(cells); err != nil {
			return err
		}
		inserted += len(cells)
		return nil
	})
	if normErr != nil {
		w.logf("gas %s: normalize/insert failed after %d rows: %v", gas, inserted, normErr)
		return GasResult{Gas: gas, Inserted: inserted, Err: normErr}
	}

	return GasResult{Gas: gas, Inserted: inserted}
}

func (w *Worker) logf(format string, args ...interface{}) {
	if w.log != nil {
		w.log.Warnf(format, args...)
	}
}
