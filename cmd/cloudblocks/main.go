// Command cloudblocks reconstructs colored point clouds as blocks in a
// game world over RCON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/banshee-data/cloudblocks/internal/config"
	"github.com/banshee-data/cloudblocks/internal/journal"
	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/pipeline"
	"github.com/banshee-data/cloudblocks/internal/placement"
	"github.com/banshee-data/cloudblocks/internal/ply"
	"github.com/banshee-data/cloudblocks/internal/version"
)

const usage = `usage: cloudblocks <command> [flags]

commands:
  place    [-config f] [flags] <file>   place a point cloud over RCON
  dry-run  [-config f] [flags] <file>   print the setblock commands instead of connecting
  synth    -o out.ply [-format ascii|binary] [-n N] [-size S]
  palette  [-path f]                    list palette blocks with their Lab colors
  runs     -journal f [-limit n]        list journaled runs
  version
`

var errUsage = errors.New("invalid usage")

func main() {
	log.SetFlags(log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatalf("Failed to %s: %v", commandName(os.Args[1:]), err)
	}
}

func commandName(args []string) string {
	if len(args) == 0 {
		return "run"
	}
	return args[0]
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "place":
		return runPlace(ctx, rest, stdout)
	case "dry-run":
		return runDryRun(ctx, rest, stdout)
	case "synth":
		return runSynth(rest, stdout)
	case "palette":
		return runPalette(rest, stdout)
	case "runs":
		return runRuns(rest, stdout)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// runFlags are the flags shared by place and dry-run. Unset flags leave the
// configuration file and environment values alone.
type runFlags struct {
	fs         *flag.FlagSet
	configPath *string
	envFile    *string
	quiet      *bool
	verbose    *bool

	cell      *float64
	threshold *int
	origin    *string
	match     *string
	workers   *int
	palette   *string

	host     *string
	port     *int
	password *string
	timeout  *string
	interval *string
	journal  *string
	report   *string
}

func newRunFlags(name string) *runFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return &runFlags{
		fs:         fs,
		configPath: fs.String("config", "", "Path to a JSON or YAML config file"),
		envFile:    fs.String("env", ".env", "Optional dotenv file with RCON_* variables"),
		quiet:      fs.Bool("quiet", false, "Mute library logging"),
		verbose:    fs.Bool("v", false, "Verbose logging"),
		cell:       fs.Float64("cell", 0, "Voxel edge length in source units (split_range)"),
		threshold:  fs.Int("threshold", 0, "Minimum points per voxel, exclusive (existence_threshold)"),
		origin:     fs.String("origin", "", "World origin of voxel (0,0,0) as x,y,z"),
		match:      fs.String("match", "", "Color matching space: lab or rgb"),
		workers:    fs.Int("workers", 0, "Worker goroutines for parsing and partitioning"),
		palette:    fs.String("palette", "", "Palette file (JSON or YAML)"),
		host:       fs.String("host", "", "RCON host"),
		port:       fs.Int("port", 0, "RCON port"),
		password:   fs.String("password", "", "RCON password (prefer RCON_PASSWORD)"),
		timeout:    fs.String("timeout", "", "RCON dial and I/O timeout, e.g. 5s"),
		interval:   fs.String("interval", "", "Pause between commands, e.g. 10ms"),
		journal:    fs.String("journal", "", "SQLite journal path"),
		report:     fs.String("report", "", "Directory for block usage reports"),
	}
}

// load parses args and returns the effective configuration: file, then
// environment, then flags.
func (f *runFlags) load(args []string) (*config.Config, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if *f.quiet {
		monitoring.SetLogger(nil)
	}
	monitoring.SetVerbose(*f.verbose)

	cfg := config.Empty()
	if *f.configPath != "" {
		var err error
		if cfg, err = config.Load(*f.configPath); err != nil {
			return nil, err
		}
	}
	if err := config.LoadDotEnv(*f.envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "cell":
			cfg.SplitRange = config.Ptr(*f.cell)
		case "threshold":
			cfg.ExistenceThreshold = config.Ptr(*f.threshold)
		case "origin":
			var pos [3]float64
			pos, err = parseOrigin(*f.origin)
			cfg.GeneratePosition = &pos
		case "match":
			cfg.MatchSpace = config.Ptr(*f.match)
		case "workers":
			cfg.Workers = config.Ptr(*f.workers)
		case "palette":
			cfg.PalettePath = config.Ptr(*f.palette)
		case "host":
			cfg.RCONHost = config.Ptr(*f.host)
		case "port":
			cfg.RCONPort = config.Ptr(*f.port)
		case "password":
			cfg.RCONPassword = config.Ptr(*f.password)
		case "timeout":
			cfg.DialTimeout = config.Ptr(*f.timeout)
		case "interval":
			cfg.CommandInterval = config.Ptr(*f.interval)
		case "journal":
			cfg.JournalPath = config.Ptr(*f.journal)
		case "report":
			cfg.ReportDir = config.Ptr(*f.report)
		}
	})
	if err != nil {
		return nil, err
	}

	switch f.fs.NArg() {
	case 0:
	case 1:
		cfg.SourcePath = config.Ptr(f.fs.Arg(0))
	default:
		return nil, fmt.Errorf("%w: expected one point cloud file, got %d", errUsage, f.fs.NArg())
	}
	if cfg.GetSourcePath() == "" {
		return nil, fmt.Errorf("%w: no point cloud file given", errUsage)
	}
	return cfg, cfg.Validate()
}

func parseOrigin(s string) ([3]float64, error) {
	var pos [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return pos, fmt.Errorf("invalid origin %q, want x,y,z", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return pos, fmt.Errorf("invalid origin %q, want x,y,z: bad component %q", s, part)
		}
		pos[i] = v
	}
	return pos, nil
}

func runPlace(ctx context.Context, args []string, stdout io.Writer) error {
	f := newRunFlags("place")
	cfg, err := f.load(args)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, pipeline.Options{Config: cfg})
	if res != nil {
		printSummary(stdout, res)
	}
	return err
}

// runDryRun runs the full pipeline against a console that prints each
// command to stdout, so journal_path and report_dir apply to dry runs too.
func runDryRun(ctx context.Context, args []string, stdout io.Writer) error {
	f := newRunFlags("dry-run")
	cfg, err := f.load(args)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, pipeline.Options{Config: cfg, Dial: placement.DryRunDialer(stdout)})
	if err != nil {
		return err
	}
	monitoring.Logf("dry-run: %d commands, %d voxels under threshold", res.Summary.Planned, res.Summary.Skipped)
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result) {
	s := res.Summary
	fmt.Fprintf(w, "run %s: %s, placed %d/%d, failed %d, skipped %d, %s\n",
		s.RunID, s.State, s.Placed, s.Planned, s.Failed, s.Skipped, s.Duration.Round(time.Millisecond))
	if res.Report.HTML != "" {
		fmt.Fprintf(w, "report: %s\n", res.Report.HTML)
	}
}

func runSynth(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("o", "", "Output .ply path (.ply.gz compresses)")
	format := fs.String("format", "binary", "Encoding: ascii or binary")
	side := fs.Int("n", 16, "Points per cube edge")
	size := fs.Float64("size", 0.5, "Point spacing")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *out == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	if *side <= 0 || *size <= 0 {
		return fmt.Errorf("%w: -n and -size must be positive", errUsage)
	}
	enc, err := ply.ParseEncoding(*format)
	if err != nil {
		return err
	}

	points := ply.Cube(*side, float32(*size))
	if err := writeCloud(*out, points, enc); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d points to %s\n", len(points), *out)
	return nil
}

func writeCloud(path string, points []ply.Point, enc ply.Encoding) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return ply.Write(f, points, enc)
	}
	zw := gzip.NewWriter(f)
	if err := ply.Write(zw, points, enc); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func runPalette(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("palette", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("path", "", "Palette file; the built-in palette when empty")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg := config.Empty()
	if *path != "" {
		cfg.PalettePath = path
	}
	pal, err := pipeline.LoadPalette(cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tRGB\tL*\ta*\tb*")
	for _, b := range pal.Blocks() {
		fmt.Fprintf(tw, "%s\t#%02x%02x%02x\t%.2f\t%.2f\t%.2f\n",
			b.Name, b.RGB.R, b.RGB.G, b.RGB.B, b.Lab.L, b.Lab.A, b.Lab.B)
	}
	return tw.Flush()
}

func runRuns(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("journal", "", "SQLite journal path")
	limit := fs.Int("limit", 20, "Maximum runs to list, 0 for all")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *path == "" {
		return fmt.Errorf("%w: -journal is required", errUsage)
	}
	if _, err := os.Stat(*path); err != nil {
		return err
	}

	db, err := journal.Open(*path)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := journal.NewStore(db, nil).ListRuns(*limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tPLACED\tFAILED\tSKIPPED\tSOURCE")
	for _, r := range runs {
		state := r.State
		if r.Error != "" {
			state += " (error)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			r.RunID, time.Unix(0, r.StartedAt).UTC().Format(time.RFC3339), state,
			r.Placed, r.Planned, r.Failed, r.Skipped, r.SourcePath)
	}
	return tw.Flush()
}
