package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"voxelindex.ai/internal/config"
	"voxelindex.ai/internal/indexer"
	"voxelindex.ai/internal/ingest"
	"voxelindex.ai/internal/persistence/artifacts"
	"voxelindex.ai/internal/persistence/indexdb"
	scanlog "voxelindex.ai/internal/persistence/log"
)

const usage = `voxindex indexes voxel object files (BO2, schematic, Hytale prefab).

Usage:
  voxindex scan [flags] <dir>      ingest new and changed files into the catalog
  voxindex inspect [flags] <file>  ingest one file and print its result
  voxindex stats [flags]           print catalog totals

Run "voxindex <command> --help" for flags.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "scan":
		return runScan(ctx, args[1:], stdout)
	case "inspect":
		return runInspect(args[1:], stdout)
	case "stats":
		return runStats(ctx, args[1:], stdout)
	}
	return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
}

// common holds the flags that override voxindex.yaml.
type common struct {
	configPath  string
	mode        string
	profile     string
	overrides   string
	db          string
	thumbSize   int
	projections bool
	verbose     bool
}

func (c *common) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "path to voxindex.yaml (default: built-in defaults)")
	fs.StringVar(&c.mode, "mode", "", "parse mode: strict | salvage | strict-then-salvage")
	fs.StringVar(&c.profile, "profile", "", "block profile: mc_1_12_legacy | mc_1_16_namespaced")
	fs.StringVar(&c.overrides, "overrides", "", "block overrides YAML file")
	fs.StringVar(&c.db, "db", "", "catalog database path")
	fs.IntVar(&c.thumbSize, "thumb-size", 0, "preview size in pixels")
	fs.BoolVar(&c.projections, "debug-projections", false, "also render front/top/side previews")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log progress to stdout")
}

func (c *common) load(fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("mode") {
		cfg.Mode = c.mode
	}
	if fs.Changed("profile") {
		cfg.Profile = c.profile
	}
	if fs.Changed("overrides") {
		cfg.OverridesPath = c.overrides
	}
	if fs.Changed("db") {
		cfg.Paths.DB = c.db
	}
	if fs.Changed("thumb-size") {
		cfg.Preview.Size = c.thumbSize
	}
	if fs.Changed("debug-projections") {
		cfg.DebugProjections = c.projections
	}
	cfg.Normalize("")
	return cfg, cfg.Validate()
}

func (c *common) logger() *log.Logger {
	if !c.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stdout, "[voxindex] ", log.LstdFlags|log.Lmicroseconds)
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func newPipeline(cfg config.Config, logger *log.Logger) (*ingest.Pipeline, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	store, err := artifacts.Open(cfg.Paths.Cache, cfg.Paths.Thumbs)
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Config{
		Registry:         reg,
		Mode:             cfg.ParsedMode(),
		Store:            store,
		ReportsDir:       cfg.Paths.Reports,
		Preview:          cfg.Preview,
		DebugProjections: cfg.DebugProjections,
		Logger:           logger,
	})
}

func runScan(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		c       common
		workers int
		force   bool
		logDir  string
	)
	fs := pflag.NewFlagSet("voxindex scan", pflag.ContinueOnError)
	c.addFlags(fs)
	fs.IntVarP(&workers, "workers", "w", 0, "worker count (default: config, then NumCPU-1)")
	fs.BoolVar(&force, "force", false, "reprocess unchanged files")
	fs.StringVar(&logDir, "scan-log", "", "directory for the compressed JSONL scan log")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("scan takes exactly one directory, got %d args", fs.NArg())
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}
	if fs.Changed("workers") {
		cfg.Workers = workers
	}
	if fs.Changed("scan-log") {
		cfg.Paths.ScanLog = logDir
	}
	logger := c.logger()

	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	cat, err := indexdb.OpenSQLite(cfg.Paths.DB)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	opts := indexer.Options{
		Root:           fs.Arg(0),
		Workers:        cfg.Workers,
		Force:          force,
		RegistryDigest: pipeline.RegistryDigest(),
		ToolVersions:   pipeline.ToolVersions(),
		Logger:         logger,
	}
	if cfg.Paths.ScanLog != "" {
		sl := scanlog.NewScanLogger(cfg.Paths.ScanLog)
		defer sl.Close()
		opts.ScanLog = sl
	}

	sum, results, err := indexer.Scan(ctx, opts, cat, pipeline)
	if err != nil {
		return err
	}
	var bytes int64
	for _, r := range results {
		bytes += r.SourceSize
	}
	logger.Printf("indexed %s files (%s) in %s", humanize.Comma(int64(sum.Scanned)), humanize.Bytes(uint64(bytes)), sum.Duration.Round(time.Millisecond))
	return writeJSON(stdout, sum)
}

func runInspect(args []string, stdout io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("voxindex inspect", pflag.ContinueOnError)
	c.addFlags(fs)
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect takes exactly one file, got %d args", fs.NArg())
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, c.logger())
	if err != nil {
		return err
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	res, err := pipeline.Ingest(ingest.Task{Path: path, MtimeMs: st.ModTime().UnixMilli(), Size: st.Size()})
	if err != nil {
		return err
	}
	return writeJSON(stdout, res)
}

func runStats(ctx context.Context, args []string, stdout io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("voxindex stats", pflag.ContinueOnError)
	c.addFlags(fs)
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}
	cat, err := indexdb.OpenSQLite(cfg.Paths.DB)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()
	st, err := cat.Stats(ctx)
	if err != nil {
		return err
	}
	return writeJSON(stdout, map[string]any{
		"total":     st.Total,
		"valid":     st.Valid,
		"invalid":   st.Invalid,
		"by_format": st.ByFormat,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
