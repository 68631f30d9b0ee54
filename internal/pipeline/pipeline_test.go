package pipeline

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloudblocks/internal/config"
	"github.com/banshee-data/cloudblocks/internal/fsutil"
	"github.com/banshee-data/cloudblocks/internal/journal"
	"github.com/banshee-data/cloudblocks/internal/placement"
	"github.com/banshee-data/cloudblocks/internal/ply"
	"github.com/banshee-data/cloudblocks/internal/rcon"
	"github.com/banshee-data/cloudblocks/internal/rcon/rcontest"
	"github.com/banshee-data/cloudblocks/internal/testutil"
	"github.com/banshee-data/cloudblocks/internal/voxel"
)

// sceneConfig writes a cloud with a red voxel at the grid origin, a white
// voxel at the far corner and a single stray blue point, and returns a
// config for it with a 1-unit cell and threshold 2.
func sceneConfig(t *testing.T) *config.Config {
	t.Helper()
	var pts []ply.Point
	pts = append(pts, testutil.Repeat(testutil.Point(0, 0, 0, 161, 39, 34), 3)...)
	pts = append(pts, testutil.Repeat(testutil.Point(2, 2, 2, 233, 236, 236), 3)...)
	pts = append(pts, testutil.Point(0, 2, 0, 53, 57, 157))
	path := testutil.WritePLY(t, t.TempDir(), "scene.ply", pts, ply.BinaryLittleEndian)

	return &config.Config{
		SourcePath:         config.Ptr(path),
		SplitRange:         config.Ptr(1.0),
		ExistenceThreshold: config.Ptr(2),
		GeneratePosition:   config.Ptr([3]float64{10, -60, 5}),
		Workers:            config.Ptr(2),
	}
}

var sceneCommands = []string{
	"setblock 10 -60 5 minecraft:red_wool",
	"setblock 11 -59 6 minecraft:white_wool",
}

func TestPlan(t *testing.T) {
	t.Parallel()

	cfg := sceneConfig(t)
	pal, err := LoadPalette(cfg)
	require.NoError(t, err)
	_, grid, err := Prepare(context.Background(), cfg)
	require.NoError(t, err)
	cmds, skipped := NewPlanner(cfg, pal).Plan(grid)
	assert.Equal(t, 1, skipped)

	got := make([]string, len(cmds))
	for i, c := range cmds {
		got[i] = c.String()
	}
	if diff := cmp.Diff(sceneCommands, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_DryRunJournalAndReport(t *testing.T) {
	t.Parallel()

	cfg := sceneConfig(t)
	cfg.JournalPath = config.Ptr(filepath.Join(t.TempDir(), "journal.db"))
	cfg.ReportDir = config.Ptr("reports")
	fsys := fsutil.NewMemoryFileSystem()

	var out bytes.Buffer
	res, err := Run(context.Background(), Options{
		Config:   cfg,
		Dial:     placement.DryRunDialer(&out),
		ReportFS: fsys,
	})
	require.NoError(t, err)

	assert.Equal(t, sceneCommands, strings.Split(strings.TrimSpace(out.String()), "\n"))
	assert.Equal(t, 2, res.Summary.Placed)
	assert.Equal(t, 1, res.Summary.Skipped)
	assert.Equal(t, 0, res.PreviousRuns)
	assert.Len(t, res.Cloud.Points, 7)
	assert.True(t, fsys.Exists(res.Report.PNG))
	assert.True(t, fsys.Exists(res.Report.HTML))

	db, err := journal.Open(cfg.GetJournalPath())
	require.NoError(t, err)
	defer db.Close()
	store := journal.NewStore(db, nil)

	run, err := store.GetRun(res.Summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Cloud.Fingerprint, run.Fingerprint)
	assert.Equal(t, placement.Closed.String(), run.State)
	assert.Equal(t, 2, run.Placed)
	assert.NotNil(t, run.FinishedAt)

	placements, err := store.Placements(res.Summary.RunID)
	require.NoError(t, err)
	require.Len(t, placements, 2)
	assert.Equal(t, "minecraft:red_wool", placements[0].Block)
	assert.Equal(t, placement.OutcomePlaced, placements[1].Outcome)
}

func TestRun_RepeatedSourceDetected(t *testing.T) {
	t.Parallel()

	cfg := sceneConfig(t)
	cfg.JournalPath = config.Ptr(filepath.Join(t.TempDir(), "journal.db"))

	for want := 0; want < 2; want++ {
		res, err := Run(context.Background(), Options{Config: cfg, Dial: placement.DryRunDialer(&bytes.Buffer{})})
		require.NoError(t, err)
		assert.Equal(t, want, res.PreviousRuns)
	}
}

func TestRun_FailsBeforeDialing(t *testing.T) {
	t.Parallel()

	dialed := false
	dial := func(context.Context) (placement.Console, error) {
		dialed = true
		return nil, nil
	}

	missing := sceneConfig(t)
	missing.SourcePath = config.Ptr(filepath.Join(t.TempDir(), "absent.ply"))
	_, err := Run(context.Background(), Options{Config: missing, Dial: dial})
	assert.ErrorIs(t, err, ply.ErrFileNotFound)

	badCell := sceneConfig(t)
	badCell.SplitRange = config.Ptr(0.0)
	_, err = Run(context.Background(), Options{Config: badCell, Dial: dial})
	assert.ErrorIs(t, err, voxel.ErrInvalidConfiguration)

	_, err = Run(context.Background(), Options{Config: config.Empty(), Dial: dial})
	assert.ErrorIs(t, err, ErrNoSource)

	badPalette := sceneConfig(t)
	palPath := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(palPath, []byte("blocks: []\n"), 0o644))
	badPalette.PalettePath = config.Ptr(palPath)
	_, err = Run(context.Background(), Options{Config: badPalette, Dial: dial})
	assert.Error(t, err)

	assert.False(t, dialed)
}

func TestLoadPalette(t *testing.T) {
	t.Parallel()

	pal, err := LoadPalette(config.Empty())
	require.NoError(t, err)
	assert.Equal(t, 48, pal.Len())

	path := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`blocks:
  - {name: "minecraft:stone", hex: "#7D7D7D"}
  - {name: "minecraft:red_wool", r: 161, g: 39, b: 34}
`), 0o644))
	cfg := config.Empty()
	cfg.PalettePath = config.Ptr(path)
	pal, err = LoadPalette(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, pal.Len())
}

func rconConfig(t *testing.T, srv *rcontest.Server, password string) *config.Config {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := sceneConfig(t)
	cfg.RCONHost = config.Ptr(host)
	cfg.RCONPort = config.Ptr(port)
	cfg.RCONPassword = config.Ptr(password)
	cfg.DialTimeout = config.Ptr("2s")
	return cfg
}

func TestRun_OverRCON(t *testing.T) {
	t.Parallel()

	srv, err := rcontest.NewServer("hunter2")
	require.NoError(t, err)
	defer srv.Close()

	res, err := Run(context.Background(), Options{Config: rconConfig(t, srv, "hunter2")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Placed)
	assert.Equal(t, sceneCommands, srv.Commands())
}

func TestRun_WrongPasswordJournaled(t *testing.T) {
	t.Parallel()

	srv, err := rcontest.NewServer("hunter2")
	require.NoError(t, err)
	defer srv.Close()

	cfg := rconConfig(t, srv, "wrong")
	cfg.JournalPath = config.Ptr(filepath.Join(t.TempDir(), "journal.db"))

	res, err := Run(context.Background(), Options{Config: cfg})
	require.ErrorIs(t, err, rcon.ErrAuthentication)
	assert.Empty(t, srv.Commands())
	assert.Equal(t, 0, res.Summary.Placed)

	db, err := journal.Open(cfg.GetJournalPath())
	require.NoError(t, err)
	defer db.Close()
	run, err := journal.NewStore(db, nil).GetRun(res.Summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, placement.Closed.String(), run.State)
	assert.Contains(t, run.Error, "authenticate")
}
