// Package global provides the flags accepted before any command.
package global

import (
	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/lz-teardown/cli/flags"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const (
	// Logs related flags.

	LogLevelFlagName  = "log-level"
	LogFormatFlagName = "log-format"
	DebugFlagName     = "debug"

	// Telemetry flags.

	TelemetryTraceExporterFlagName                  = "telemetry-trace-exporter"
	TelemetryTraceExporterInsecureEndpointFlagName  = "telemetry-trace-exporter-insecure-endpoint"
	TelemetryTraceExporterHTTPEndpointFlagName      = "telemetry-trace-exporter-http-endpoint"
	TraceparentFlagName                             = "traceparent"
	TelemetryMetricExporterFlagName                 = "telemetry-metric-exporter"
	TelemetryMetricExporterInsecureEndpointFlagName = "telemetry-metric-exporter-insecure-endpoint"
)

// NewFlags creates and returns global flags.
func NewFlags(opts *options.TeardownOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        LogLevelFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(LogLevelFlagName),
			Destination: &opts.LogLevel,
			Value:       opts.LogLevel,
			Usage:       "Sets the logging level: error, warn, info, debug or trace.",
		},
		&cli.StringFlag{
			Name:        LogFormatFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(LogFormatFlagName),
			Destination: &opts.LogFormat,
			Value:       opts.LogFormat,
			Usage:       "Sets the logging format: " + log.PrettyFormatName + " or " + log.JSONFormatName + ".",
		},
		&cli.BoolFlag{
			Name:        DebugFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(DebugFlagName),
			Destination: &opts.Debug,
			Usage:       "Logs at debug level and prints the stack trace of a failure. --log-level takes precedence.",
		},

		// Telemetry related flags.

		&cli.StringFlag{
			Name:        TelemetryTraceExporterFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(TelemetryTraceExporterFlagName),
			Destination: &opts.Telemetry.TraceExporter,
			Hidden:      true,
		},
		&cli.BoolFlag{
			Name:        TelemetryTraceExporterInsecureEndpointFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(TelemetryTraceExporterInsecureEndpointFlagName),
			Destination: &opts.Telemetry.TraceExporterInsecureEndpoint,
			Hidden:      true,
		},
		&cli.StringFlag{
			Name:        TelemetryTraceExporterHTTPEndpointFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(TelemetryTraceExporterHTTPEndpointFlagName),
			Destination: &opts.Telemetry.TraceExporterHTTPEndpoint,
			Hidden:      true,
		},
		&cli.StringFlag{
			Name:        TraceparentFlagName,
			EnvVars:     flags.Prefix{}.EnvVars(TraceparentFlagName),
			Destination: &opts.Telemetry.TraceParent,
			Hidden:      true,
		},
		&cli.StringFlag{
			Name:        TelemetryMetricExporterFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(TelemetryMetricExporterFlagName),
			Destination: &opts.Telemetry.MetricExporter,
			Hidden:      true,
		},
		&cli.BoolFlag{
			Name:        TelemetryMetricExporterInsecureEndpointFlagName,
			EnvVars:     flags.EnvVarsWithLztPrefix(TelemetryMetricExporterInsecureEndpointFlagName),
			Destination: &opts.Telemetry.MetricExporterInsecureEndpoint,
			Hidden:      true,
		},
	}
}

// SetupLogger applies the logging flags to the logger of opts. --debug lowers the level unless --log-level was given.
func SetupLogger(cliCtx *cli.Context, opts *options.TeardownOptions) error {
	levelName := opts.LogLevel
	if opts.Debug && !cliCtx.IsSet(LogLevelFlagName) {
		levelName = log.DebugLevel.String()
	}

	level, err := log.ParseLevel(levelName)
	if err != nil {
		return err
	}

	formatter, err := log.NewFormatter(opts.LogFormat)
	if err != nil {
		return err
	}

	opts.Logger.SetOptions(log.WithLevel(level), log.WithFormatter(formatter), log.WithOutput(opts.ErrWriter))

	return nil
}
