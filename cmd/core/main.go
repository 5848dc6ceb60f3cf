// Package main is the command-line companion of the booking core. It runs a
// single merge or analytics pass against the configured stores and prints
// the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/analytics"
	"github.com/kimhsiao/gosauna/backend/internal/config"
	"github.com/kimhsiao/gosauna/backend/internal/console"
	"github.com/kimhsiao/gosauna/backend/internal/kv"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/remote"
	"github.com/kimhsiao/gosauna/backend/internal/store"
	syncpkg "github.com/kimhsiao/gosauna/backend/internal/sync"
	"github.com/kimhsiao/gosauna/backend/internal/sync/conflict"
	"github.com/kimhsiao/gosauna/backend/internal/visitlog"
)

// Version is set at build time
var Version = "0.1.0"

const usage = `Usage: gosauna-core <command> [flags]

Commands:
  version    print the version
  bookings   merge the remote list into the local cache and print it
  local      print the local cache without contacting the remote side
  visits     aggregate the visit log (-range day|week|month|year, -file path)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "GoSauna Core v%s\n", Version)
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	case "bookings", "local", "visits":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logging.Init(stderr, logging.ParseLevel(cfg.LogLevel))

	switch cmd {
	case "bookings":
		return runBookings(ctx, cfg, rest, stdout, stderr, true)
	case "local":
		return runBookings(ctx, cfg, rest, stdout, stderr, false)
	default:
		return runVisits(ctx, cfg, rest, stdout, stderr)
	}
}

// mergeOnce adapts the engine to the console's Refresher.
type mergeOnce struct {
	engine *syncpkg.SyncEngine
}

func (m mergeOnce) SyncNow(ctx context.Context) *syncpkg.MergeResult {
	return m.engine.MergeAndLoad(ctx)
}

// localOnly lists nothing, so the merge runs over the cache alone.
type localOnly struct{}

func (localOnly) ListBookings(context.Context, int) ([]models.Booking, error) {
	return nil, nil
}

func runBookings(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer, withRemote bool) int {
	fs := flag.NewFlagSet("bookings", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "storage: %v\n", err)
		return 1
	}
	defer backend.Close()

	records := store.New(backend)
	gateway := newGateway(cfg, backend)

	var lister syncpkg.BookingLister = localOnly{}
	if withRemote {
		lister = gateway
	}
	engine := syncpkg.NewSyncEngine(records, lister, conflict.NewResolver(conflict.ParseStrategy(cfg.ConflictStrategy)), cfg.BookingPageSize)
	svc := console.NewService(console.Deps{
		Identity:  gateway,
		Refresher: mergeOnce{engine: engine},
		Remote:    gateway,
		Store:     records,
	}, console.Options{})

	view := svc.LoadBookings(ctx)
	if !withRemote {
		view.Mode = syncpkg.ModeLocalOnly
		view.ModeLabel = console.ModeLabelLocalOnly
	}
	if *asJSON {
		return printJSON(stdout, stderr, view)
	}

	fmt.Fprintf(stdout, "%s\n%s\n\n", view.ModeLabel, view.Message)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tSAUNA\tGUEST\tEMAIL\tPHONE\tSTATUS\tSOURCE")
	for _, b := range view.Bookings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Date, b.TimeSlot, b.SaunaName, b.GuestName, b.GuestEmail, b.GuestPhone, b.Status, b.Origin)
	}
	tw.Flush()
	return 0
}

func runVisits(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("visits", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rangeFlag := fs.String("range", string(models.RangeWeek), "day, week, month or year")
	file := fs.String("file", "", "read an exported visit log instead of the configured source")
	tz := fs.String("tz", "Local", "time zone used for bucketing")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(stderr, "time zone: %v\n", err)
		return 2
	}

	source, closeSource, err := visitSource(ctx, cfg, *file)
	if err != nil {
		fmt.Fprintf(stderr, "visit log: %v\n", err)
		return 1
	}
	defer closeSource()

	svc := console.NewService(console.Deps{
		Visits:     source,
		Aggregator: analytics.New(loc),
	}, console.Options{VisitLogLimit: cfg.VisitLogLimit})

	stats := svc.LoadVisitStats(ctx, models.ParseRange(*rangeFlag, models.RangeYear))
	if *asJSON {
		if code := printJSON(stdout, stderr, stats); code != 0 {
			return code
		}
	} else {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BUCKET\tUNIQUE\tVISITS")
		for _, p := range stats.Points {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Label, p.Unique, p.Visits)
		}
		tw.Flush()
		fmt.Fprintf(stdout, "\n%s\n", stats.Summary)
	}

	if !stats.OK() {
		fmt.Fprintln(stderr, stats.Message)
		return 1
	}
	return 0
}

func visitSource(ctx context.Context, cfg *config.Config, file string) (visitlog.Source, func(), error) {
	if file != "" {
		return &visitlog.FileSource{Path: file}, func() {}, nil
	}
	if cfg.VisitLogSource == config.VisitSourceMongo {
		m, err := visitlog.NewMongo(ctx, visitlog.MongoOptions{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close(context.Background()) }, nil
	}

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return visitlog.NewRemoteSource(newGateway(cfg, backend)), func() { _ = backend.Close() }, nil
}

func newGateway(cfg *config.Config, backend kv.Store) *remote.Gateway {
	return remote.NewGateway(remote.Config{
		BaseURL: cfg.RemoteBaseURL,
		AppID:   cfg.RemoteAppID,
		Timeout: cfg.RemoteTimeout,
		Tokens:  remote.KVTokenSource{Store: backend, Fallback: cfg.RemoteToken},
	})
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}
