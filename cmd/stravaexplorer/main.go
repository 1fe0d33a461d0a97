package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/lox/stravaexplorer/internal/api"
	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/htmlutil"
	"github.com/lox/stravaexplorer/internal/ingest"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/render"
	"github.com/lox/stravaexplorer/internal/store"
)

type Globals struct {
	Data         string        `help:"Observation source: a CSV path, ftp:// or http(s):// URL, or db:<dataset>." default:"data/strava.csv" env:"STRAVA_DATA"`
	DB           string        `help:"Path to SQLite database." default:"data/stravaexplorer.db" env:"STRAVA_DB"`
	FetchTimeout time.Duration `help:"Give up on a remote source after this long." default:"2m"`
	Debug        bool          `help:"Enable debug logging." env:"STRAVA_DEBUG"`
}

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Serve the dashboard."`
	Import   ImportCmd   `cmd:"" help:"Import a source into the database as a named dataset."`
	Datasets DatasetsCmd `cmd:"" help:"List or delete imported datasets."`
	Render   RenderCmd   `cmd:"" help:"Render every chart for a selection to files."`
	Summary  SummaryCmd  `cmd:"" help:"Print the dashboard as plain text."`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("stravaexplorer"),
		kong.Description("Explore Strava wearable running metrics by time of day and month."),
		kong.UsageOnError(),
	)

	if err := log.Init(cli.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

func openStore(path string) (*store.Store, func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

// loadCache builds the load-once cache for g.Data and loads it. A failed
// load ends the process.
func loadCache(ctx context.Context, g *Globals) (*dataset.Cache, func()) {
	var (
		st    *store.Store
		cleanup = func() {}
	)
	if strings.HasPrefix(g.Data, ingest.DBPrefix) {
		var err error
		st, cleanup, err = openStore(g.DB)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
	}

	cache := dataset.NewCache(func() (*dataset.Table, error) {
		return ingest.LoadTable(ctx, g.Data, st, g.FetchTimeout)
	})
	if _, err := cache.Get(); err != nil {
		cleanup()
		log.Fatalf("load %s: %v", g.Data, err)
	}
	return cache, cleanup
}

func dashboardFor(srv *api.Server, query string) (*explore.Dashboard, error) {
	req, err := http.NewRequest(http.MethodGet, "/?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return srv.Dashboard(req)
}

type ServeCmd struct {
	Addr string `help:"HTTP listen address." default:":8080" env:"STRAVA_ADDR"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cache, cleanup := loadCache(ctx, g)
	defer cleanup()

	return api.NewServer(cache, c.Addr).Run(ctx)
}

type ImportCmd struct {
	Source  string `arg:"" help:"CSV path or ftp:// / http(s):// URL to import."`
	Name    string `help:"Dataset name." required:""`
	Replace bool   `help:"Replace an existing dataset with the same name."`
}

func (c *ImportCmd) Run(g *Globals) error {
	st, cleanup, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer cleanup()

	ds, err := ingest.NewImporter(st, g.FetchTimeout).Import(context.Background(), c.Source, c.Name, c.Replace)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d rows into %q (%d flagged)\n", ds.RowCount, ds.Name, ds.FlagCount)
	return nil
}

type DatasetsCmd struct {
	Delete string `help:"Delete the named dataset instead of listing."`
}

func (c *DatasetsCmd) Run(g *Globals) error {
	st, cleanup, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Delete != "" {
		deleted, err := st.DeleteDataset(c.Delete)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no dataset named %q", c.Delete)
		}
		fmt.Printf("deleted %q\n", c.Delete)
		return nil
	}

	datasets, err := st.ListDatasets()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROWS\tFLAGGED\tIMPORTED\tSOURCE")
	for _, ds := range datasets {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", ds.Name, ds.RowCount, ds.FlagCount, ds.ImportedAt.Local().Format(time.DateTime), ds.Source)
	}
	return tw.Flush()
}

type RenderCmd struct {
	Out    string `help:"Output directory." default:"charts" type:"path"`
	Format string `help:"Image format." enum:"png,svg" default:"png"`
	Query  string `help:"Selection as a dashboard query string, e.g. 'submitted=1&time=Morning&metric=Power'."`
	Width  int    `help:"Chart width in pixels." default:"800"`
	Height int    `help:"Chart height in pixels." default:"420"`
}

func (c *RenderCmd) Run(g *Globals) error {
	cache, cleanup := loadCache(context.Background(), g)
	defer cleanup()

	d, err := dashboardFor(api.NewServer(cache, ""), c.Query)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	format, _ := render.ParseFormat(c.Format)
	r := &render.Renderer{Width: c.Width, Height: c.Height, Format: format}
	for _, name := range render.Charts {
		img, err := r.Chart(d, name)
		if err != nil {
			return err
		}
		path := filepath.Join(c.Out, name+"."+c.Format)
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Infow("render: wrote chart", "path", path, "bytes", len(img))
	}
	if d.Fallback != nil {
		fmt.Println(d.Fallback.Notice)
	}
	return nil
}

type SummaryCmd struct {
	Query string `help:"Selection as a dashboard query string."`
}

func (c *SummaryCmd) Run(g *Globals) error {
	cache, cleanup := loadCache(context.Background(), g)
	defer cleanup()

	srv := api.NewServer(cache, "")
	d, err := dashboardFor(srv, c.Query)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := srv.WritePage(&buf, d); err != nil {
		return err
	}
	fmt.Println(htmlutil.PageText(buf.String()))
	return nil
}
