package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/diwise/sensorthings-importer/internal/pkg/application/importer"
	"github.com/diwise/sensorthings-importer/internal/pkg/presentation/api"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/net/http/handlers"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/servicerunner"
)

const serviceName string = "importer-api"

var ifnot = servicerunner.IfNot[AppConfig]
var onshutdown = servicerunner.OnShutdown[AppConfig]
var webserver = servicerunner.WithHTTPServeMux[AppConfig]
var muxinit = servicerunner.OnMuxInit[AppConfig]
var listen = servicerunner.WithListenAddr[AppConfig]
var port = servicerunner.WithPort[AppConfig]
var pprof = servicerunner.WithPPROF[AppConfig]
var liveness = servicerunner.WithK8SLivenessProbe[AppConfig]
var readiness = servicerunner.WithK8SReadinessProbes[AppConfig]

type AppConfig struct {
	mappingConfig io.ReadCloser
	opaConfig     io.ReadCloser

	publicPort string

	mapping *importer.Config
	sta     client.SensorThingsClient
}

func defaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",
		controlPort:   "8000",

		configPath: "/opt/diwise/config/mapping.yaml",
		opaPath:    "/opt/diwise/config/authz.rego",

		logFormat: "json",
	}
}

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	ctx, logger, cleanup := o11y.Init(ctx, serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	mappingFile, err := os.Open(flags[configPath])
	if err != nil {
		logger.Error("failed to open the mapping configuration file", "err", err.Error())
		os.Exit(1)
	}

	policyFile, err := os.Open(flags[opaPath])
	if err != nil {
		logger.Error("failed to open the authorization policy file", "err", err.Error())
		os.Exit(1)
	}

	runner, err := initialize(ctx, flags, &AppConfig{
		mappingConfig: mappingFile,
		opaConfig:     policyFile,
	})
	if err != nil {
		logger.Error("failed to initialize service runner", "err", err.Error())
		os.Exit(1)
	}

	err = runner.Run(ctx)
	if err != nil {
		logger.Error("failed to run service", "err", err.Error())
		os.Exit(1)
	}
}

func parseExternalConfig(ctx context.Context, flags FlagMap) (context.Context, FlagMap) {

	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault
	flags[listenAddress] = envOrDef(ctx, "LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])
	flags[controlPort] = envOrDef(ctx, "CONTROL_PORT", flags[controlPort])
	flags[targetURL] = envOrDef(ctx, "SENSORTHINGS_URL", flags[targetURL])
	flags[logFormat] = envOrDef(ctx, "LOG_FORMAT", flags[logFormat])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("mapping", "a mapping configuration file", apply(configPath))
	flag.Func("policies", "an authorization policy file", apply(opaPath))
	flag.Func("url", "url of the sensorthings service", apply(targetURL))
	flag.Parse()

	return ctx, flags
}

func initialize(ctx context.Context, flags FlagMap, cfg *AppConfig) (servicerunner.Runner[AppConfig], error) {

	mapping, err := importer.LoadConfiguration(cfg.mappingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping configuration: %w", err)
	}

	cfg.mapping = mapping
	cfg.sta = client.New(flags[targetURL],
		client.Debug(env.GetVariableOrDefault(ctx, "STA_CLIENT_DEBUG", "false")),
		client.BasicAuth(
			env.GetVariableOrDefault(ctx, "SENSORTHINGS_USER", ""),
			env.GetVariableOrDefault(ctx, "SENSORTHINGS_PASSWORD", ""),
		),
	)

	probes := map[string]handlers.ServiceProber{
		"sensorthings": func(ctx context.Context) (string, error) { return "ok", nil },
	}

	_, runner := servicerunner.New(ctx, *cfg,
		ifnot(flags[controlPort] == "",
			webserver("control", listen(flags[listenAddress]), port(flags[controlPort]),
				pprof(), liveness(func() error { return nil }), readiness(probes),
			)),
		webserver("public", listen(flags[listenAddress]), port(flags[servicePort]),
			muxinit(func(ctx context.Context, identifier string, port string, svcCfg *AppConfig, handler *http.ServeMux) error {
				svcCfg.publicPort = port
				return api.RegisterHandlers(ctx, serviceName, handler, svcCfg.opaConfig, svcCfg.mapping, svcCfg.sta)
			})),
		onshutdown(func(ctx context.Context, svcCfg *AppConfig) error {
			svcCfg.mappingConfig.Close()
			svcCfg.opaConfig.Close()
			return nil
		}),
	)

	return runner, nil
}
