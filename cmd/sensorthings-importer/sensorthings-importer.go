package main

import (
	"context"
	"flag"
	"os"

	"github.com/diwise/sensorthings-importer/internal/pkg/application/importer"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const appName string = "sensorthings-importer"

func main() {
	appVersion := buildinfo.SourceVersion()

	mappingPath := flag.String("mapping", "", "a mapping configuration file")
	inputPath := flag.String("input", "", "a geojson or csv file to import")
	serviceURL := flag.String("url", "", "url of the sensorthings service")
	dryRun := flag.Bool("dry-run", false, "log changes instead of applying them")
	logFormat := flag.String("log-format", "json", "log output format (json or text)")
	flag.Parse()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, *logFormat)
	defer cleanup()

	if *serviceURL == "" {
		*serviceURL = env.GetVariableOrDie(ctx, "SENSORTHINGS_URL", "url of the sensorthings service")
	}

	cfg, err := loadMapping(*mappingPath)
	if err != nil {
		log.Error("failed to load mapping configuration", "err", err.Error())
		os.Exit(1)
	}

	if *dryRun {
		cfg.DryRun = true
	}

	input, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Error("failed to read input file", "err", err.Error())
		os.Exit(1)
	}

	records, err := importer.ParseRecords(input, cfg)
	if err != nil {
		log.Error("failed to parse input file", "err", err.Error())
		os.Exit(1)
	}

	log.Info("starting import", "features", len(records), "dry_run", cfg.DryRun)

	sta := client.New(*serviceURL,
		client.Debug(env.GetVariableOrDefault(ctx, "STA_CLIENT_DEBUG", "false")),
		client.BasicAuth(
			env.GetVariableOrDefault(ctx, "SENSORTHINGS_USER", ""),
			env.GetVariableOrDefault(ctx, "SENSORTHINGS_PASSWORD", ""),
		),
	)

	report, err := importer.New(cfg, sta).Run(ctx, records)
	if err != nil {
		log.Error("import failed", "err", err.Error())
		os.Exit(1)
	}

	for _, detail := range report.Errors {
		log.Warn("feature was not imported", "detail", detail)
	}

	log.Info("import finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"failed", report.Failed,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"observations", report.Observations,
	)
}

func loadMapping(path string) (*importer.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return importer.LoadConfiguration(f)
}
