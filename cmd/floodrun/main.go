// Command floodrun runs a single flood analysis from the command line and
// prints the result summary as JSON. It runs against an offline scene
// manifest, or against the hosted raster service when -api-url is set.
//
// The AOI is either a square centred on -lon/-lat with edge -size-km, or a
// rectangle given by -lon-min/-lat-min/-lon-max/-lat-max.
//
// Usage:
//
//	go run ./cmd/floodrun \
//	  -manifest testdata/valencia/manifest.json \
//	  -event-date 2024-10-29 -lon -0.4 -lat 39.35 -size-km 20
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/couchcryptid/flood-detection-service/internal/adapter/memory"
	"github.com/couchcryptid/flood-detection-service/internal/adapter/remote"
	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/observability"
	"github.com/couchcryptid/flood-detection-service/internal/pipeline"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

type options struct {
	manifest     string
	apiURL       string
	apiToken     string
	mode         string
	referenceDir string
	timeout      time.Duration
	verbose      bool
	request      domain.AnalysisRequest
}

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// parseFlags reads the command line. Only AOI flags that were actually given
// end up in the request, so the square and rectangle forms stay exclusive.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("floodrun", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.manifest, "manifest", "", "offline scene manifest (JSON)")
	fs.StringVar(&o.apiURL, "api-url", "", "hosted raster service base URL; overrides -manifest")
	fs.StringVar(&o.apiToken, "api-token", os.Getenv("RASTER_API_TOKEN"), "raster service bearer token")
	fs.StringVar(&o.request.EventDate, "event-date", "", "flood event date, YYYY-MM-DD")
	fs.IntVar(&o.request.DaysBefore, "days-before", 30, "days of pre-event acquisitions")
	fs.IntVar(&o.request.DaysAfter, "days-after", 10, "days of post-event acquisitions")
	fs.StringVar(&o.request.Polarization, "polarization", domain.PolarizationVH, "radar polarization: VH or VV")
	fs.StringVar(&o.request.Orbit, "orbit", domain.OrbitDescending, "orbit pass: ASCENDING or DESCENDING")
	lon := fs.Float64("lon", 0, "AOI centre longitude")
	lat := fs.Float64("lat", 0, "AOI centre latitude")
	sizeKm := fs.Float64("size-km", 20, "AOI edge length in kilometres")
	lonMin := fs.Float64("lon-min", 0, "AOI west edge")
	latMin := fs.Float64("lat-min", 0, "AOI south edge")
	lonMax := fs.Float64("lon-max", 0, "AOI east edge")
	latMax := fs.Float64("lat-max", 0, "AOI north edge")
	fs.StringVar(&o.mode, "mode", domain.ModeFuzzy, "analysis mode: fuzzy or threshold")
	fs.StringVar(&o.referenceDir, "reference-dir", "", "directory of YYYY-MM-DD.geojson reference flood extents")
	fs.DurationVar(&o.timeout, "timeout", 5*time.Minute, "analysis timeout")
	fs.BoolVar(&o.verbose, "v", false, "log every stage to stderr")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.request.EventDate == "" || (o.manifest == "" && o.apiURL == "") {
		fs.Usage()
		return options{}, errUsage
	}

	aoi := &o.request.AOI
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lon":
			aoi.Lon = lon
		case "lat":
			aoi.Lat = lat
		case "size-km":
			aoi.SizeKm = sizeKm
		case "lon-min":
			aoi.LonMin = lonMin
		case "lat-min":
			aoi.LatMin = latMin
		case "lon-max":
			aoi.LonMax = lonMax
		case "lat-max":
			aoi.LatMax = latMax
		}
	})
	if (aoi.Lon != nil || aoi.Lat != nil) && aoi.SizeKm == nil {
		aoi.SizeKm = sizeKm
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	metrics := observability.NewUnregisteredMetrics()

	analysis, err := domain.ParseRequest(o.request)
	if err != nil {
		fmt.Fprintf(stderr, "invalid request: %v\n", err)
		return 2
	}

	var backend raster.Backend
	if o.apiURL != "" {
		backend = remote.NewClient(o.apiURL, o.apiToken, o.timeout, metrics, logger)
	} else {
		b, err := memory.LoadManifest(o.manifest)
		if err != nil {
			fmt.Fprintf(stderr, "load manifest: %v\n", err)
			return 1
		}
		backend = b
	}

	settings := pipeline.DefaultSettings()
	settings.Mode = o.mode

	var opts []pipeline.Option
	if o.referenceDir != "" {
		catalog, err := pipeline.LoadCatalogDir(o.referenceDir)
		if err != nil {
			fmt.Fprintf(stderr, "load reference floods: %v\n", err)
			return 1
		}
		opts = append(opts, pipeline.WithReferenceCatalog(catalog))
	}

	p, err := pipeline.New(backend, settings, logger, metrics, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "configure pipeline: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := p.Run(ctx, analysis)
	if err != nil {
		fmt.Fprintf(stderr, "analysis failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result.Summary()); err != nil {
		fmt.Fprintf(stderr, "write summary: %v\n", err)
		return 1
	}
	return 0
}
