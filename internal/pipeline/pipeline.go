// Package pipeline wires parsing, partitioning, placement, journaling and
// reporting into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/cloudblocks/internal/config"
	"github.com/banshee-data/cloudblocks/internal/fsutil"
	"github.com/banshee-data/cloudblocks/internal/journal"
	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/palette"
	"github.com/banshee-data/cloudblocks/internal/placement"
	"github.com/banshee-data/cloudblocks/internal/ply"
	"github.com/banshee-data/cloudblocks/internal/rcon"
	"github.com/banshee-data/cloudblocks/internal/report"
	"github.com/banshee-data/cloudblocks/internal/security"
	"github.com/banshee-data/cloudblocks/internal/timeutil"
	"github.com/banshee-data/cloudblocks/internal/voxel"
)

// ErrNoSource is returned when no point cloud path is configured.
var ErrNoSource = errors.New("pipeline: no source path configured")

// Options configures Run.
type Options struct {
	Config *config.Config
	// Dial overrides the console. Nil dials RCON at Config.RCONAddr().
	Dial placement.DialFunc
	// ReportFS overrides the report filesystem. Nil writes to disk with
	// output paths confined to the report directory.
	ReportFS fsutil.FileSystem
	Clock    timeutil.Clock
}

// Result describes a finished run.
type Result struct {
	Cloud   *ply.Cloud
	Grid    *voxel.Grid
	Summary placement.Summary
	Report  report.Files
	// PreviousRuns counts journaled runs over the same source bytes.
	PreviousRuns int
}

// LoadPalette returns the palette at cfg's palette_path, or the built-in
// palette when none is set.
func LoadPalette(cfg *config.Config) (*palette.Palette, error) {
	path := cfg.GetPalettePath()
	if path == "" {
		return palette.Default(), nil
	}
	pal, err := palette.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load palette: %w", err)
	}
	return pal, nil
}

// Prepare parses the configured point cloud and partitions it into voxels.
func Prepare(ctx context.Context, cfg *config.Config) (*ply.Cloud, *voxel.Grid, error) {
	src := cfg.GetSourcePath()
	if src == "" {
		return nil, nil, ErrNoSource
	}
	cloud, err := ply.ReadFile(ctx, src, ply.Options{Workers: cfg.GetWorkers()})
	if err != nil {
		return nil, nil, err
	}
	grid, err := voxel.Partition(cloud.Points, cloud.Bounds, float32(cfg.GetSplitRange()), cfg.GetWorkers())
	if err != nil {
		return nil, nil, err
	}
	return cloud, grid, nil
}

// NewPlanner builds a Planner from cfg.
func NewPlanner(cfg *config.Config, pal *palette.Palette) placement.Planner {
	pos := cfg.GetGeneratePosition()
	return placement.Planner{
		Palette:    pal,
		Threshold:  cfg.GetExistenceThreshold(),
		Origin:     [3]float32{float32(pos[0]), float32(pos[1]), float32(pos[2])},
		MatchSpace: cfg.GetMatchSpace(),
	}
}

// Run executes a full reconstruction. File, format and configuration
// errors are returned before any console is dialed. The journal and report
// are optional and enabled by journal_path and report_dir.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Empty()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pal, err := LoadPalette(cfg)
	if err != nil {
		return nil, err
	}
	cloud, grid, err := Prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Cloud: cloud, Grid: grid}

	dial := opts.Dial
	if dial == nil {
		dial = placement.RCONDialer(cfg.RCONAddr(), rcon.Options{
			DialTimeout: cfg.GetDialTimeout(),
			IOTimeout:   cfg.GetDialTimeout(),
		})
	}
	driver := &placement.Driver{
		Planner:  NewPlanner(cfg, pal),
		Dial:     dial,
		Password: cfg.GetRCONPassword(),
		Interval: cfg.GetCommandInterval(),
		Clock:    opts.Clock,
	}

	var store *journal.Store
	if path := cfg.GetJournalPath(); path != "" {
		db, err := journal.Open(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		store = journal.NewStore(db, opts.Clock)

		prev, err := store.RunsForFingerprint(cloud.Fingerprint)
		if err != nil {
			return nil, err
		}
		res.PreviousRuns = len(prev)
		if len(prev) > 0 {
			monitoring.Logf("pipeline: %s was already placed by %d earlier run(s), latest %s",
				cfg.GetSourcePath(), len(prev), prev[0].RunID)
		}

		pos := cfg.GetGeneratePosition()
		run := &journal.Run{
			SourcePath:  cfg.GetSourcePath(),
			Fingerprint: cloud.Fingerprint,
			CellSize:    cfg.GetSplitRange(),
			Threshold:   cfg.GetExistenceThreshold(),
			Origin:      pos,
			PointCount:  len(cloud.Points),
		}
		if err := store.StartRun(run); err != nil {
			return nil, err
		}
		driver.RunID = run.RunID
		driver.Journal = store.Recorder(run.RunID)
	} else {
		driver.RunID = uuid.New().String()
	}

	sum, runErr := driver.Run(ctx, grid)
	res.Summary = sum

	if store != nil {
		if err := store.FinishRun(sum, runErr); err != nil {
			monitoring.Logf("pipeline: failed to finish journal run %s: %v", sum.RunID, err)
		}
	}

	if dir := cfg.GetReportDir(); dir != "" && sum.Placed > 0 {
		w := &report.Writer{FS: opts.ReportFS, Dir: dir}
		if w.FS == nil {
			w.FS = fsutil.OSFileSystem{}
			w.Validate = security.ValidatePathWithinDirectory
		}
		files, err := w.Write(sum, pal, cfg.GetSourcePath())
		if err != nil {
			monitoring.Logf("pipeline: failed to write report: %v", err)
		} else {
			res.Report = files
		}
	}

	monitoring.Logf("pipeline: run %s %s: planned=%d placed=%d failed=%d skipped=%d in %s",
		sum.RunID, sum.State, sum.Planned, sum.Placed, sum.Failed, sum.Skipped, sum.Duration)
	return res, runErr
}
