// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

const (
	optionNameAPIAddr             = "api-addr"
	optionNameVerbosity           = "verbosity"
	optionNameShutdownTimeout     = "shutdown-timeout"
	optionNameTracerDriver        = "tracer-driver"
	optionNameServiceName         = "service-name"
	optionNameZipkinEndpointURL   = "zipkin-endpoint-url"
	optionNameZipkinTimeout       = "zipkin-timeout"
	optionNameZipkinLocalAddress  = "zipkin-local-address"
	optionNameZipkinBatchSize     = "zipkin-batch-size"
	optionNameZipkinBatchInterval = "zipkin-batch-interval"
	optionNameZipkinMaxBacklog    = "zipkin-max-backlog"
	optionNameZipkinSharedSpans   = "zipkin-shared-spans"
	optionNameJaegerReportingHost = "jaeger-reporting-host"
	optionNameJaegerReportingPort = "jaeger-reporting-port"
	optionNameJaegerMaxBufferLen  = "jaeger-max-buffer-length"
	optionNameJaegerSamplerType   = "jaeger-sampler-type"
	optionNameJaegerSamplerParam  = "jaeger-sampler-param"
	optionNameJaegerFlushInterval = "jaeger-flush-interval"
	optionNameEnableGuzzle        = "enable-guzzle"
	optionNameEnableRedis         = "enable-redis"
	optionNameEnableDB            = "enable-db"
	optionNameEnableMethod        = "enable-method"
	optionNameEnableException     = "enable-exception"
)

const (
	defaultAPIAddr            = ":9501"
	defaultServiceName        = "skeleton"
	defaultZipkinEndpointURL  = "http://localhost:9411/api/v2/spans"
	defaultZipkinLocalAddress = "127.0.0.1:9501"
	defaultShutdownTimeout    = 15 * time.Second
)

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfgFile string
	homeDir string
}

type option func(*command)

func newCommand(opts ...option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "tracer",
			Short:         "Trace context propagation engine",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return c.initConfig()
			},
		},
	}

	for _, o := range opts {
		o(c)
	}

	// Find home directory.
	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()

	if err := c.initStartCmd(); err != nil {
		return nil, err
	}

	c.initPrintConfigCmd()
	c.initVersionCmd()

	return c, nil
}

func (c *command) Execute() (err error) {
	return c.root.Execute()
}

// Execute parses command line arguments and runs appropriate functions.
func Execute() (err error) {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	globalFlags := c.root.PersistentFlags()
	globalFlags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.tracer.yaml)")
}

func (c *command) initConfig() (err error) {
	config := viper.New()
	configName := ".tracer"
	if c.cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(c.cfgFile)
	} else {
		// Search config in home directory with name ".tracer" (without extension).
		config.AddConfigPath(c.homeDir)
		config.SetConfigName(configName)
	}

	// Environment
	config.SetEnvPrefix("tracer")
	config.AutomaticEnv() // read in environment variables that match
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if c.homeDir != "" && c.cfgFile == "" {
		c.cfgFile = filepath.Join(c.homeDir, configName+".yaml")
	}

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return err
		}
	}
	c.config = config
	return nil
}

func (c *command) setHomeDir() (err error) {
	if c.homeDir != "" {
		return
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = dir
	return nil
}

func (c *command) setAllFlags(cmd *cobra.Command) {
	cmd.Flags().String(optionNameAPIAddr, defaultAPIAddr, "HTTP API listen address")
	cmd.Flags().String(optionNameVerbosity, "info", "log verbosity level 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace")
	cmd.Flags().Duration(optionNameShutdownTimeout, defaultShutdownTimeout, "time to wait for in-flight requests on shutdown")
	cmd.Flags().String(optionNameTracerDriver, tracing.DriverZipkin, "tracing backend: zipkin, jaeger or noop")
	cmd.Flags().String(optionNameServiceName, defaultServiceName, "service name identifier for tracing")
	cmd.Flags().String(optionNameZipkinEndpointURL, defaultZipkinEndpointURL, "zipkin span collector url")
	cmd.Flags().Duration(optionNameZipkinTimeout, time.Second, "zipkin reporter request timeout")
	cmd.Flags().String(optionNameZipkinLocalAddress, defaultZipkinLocalAddress, "host:port of the local endpoint recorded on zipkin spans")
	cmd.Flags().Int(optionNameZipkinBatchSize, 100, "maximal number of spans in a zipkin report")
	cmd.Flags().Duration(optionNameZipkinBatchInterval, time.Second, "maximal time between zipkin reports")
	cmd.Flags().Int(optionNameZipkinMaxBacklog, 1000, "maximal number of spans buffered for zipkin")
	cmd.Flags().Bool(optionNameZipkinSharedSpans, true, "share span ids between client and server spans")
	cmd.Flags().String(optionNameJaegerReportingHost, "localhost", "jaeger agent host")
	cmd.Flags().Int(optionNameJaegerReportingPort, 5775, "jaeger agent port")
	cmd.Flags().Int(optionNameJaegerMaxBufferLen, 1024, "maximal number of spans buffered for jaeger")
	cmd.Flags().String(optionNameJaegerSamplerType, "const", "jaeger sampler type: const, probabilistic, ratelimiting or remote")
	cmd.Flags().Float64(optionNameJaegerSamplerParam, 1, "jaeger sampler parameter")
	cmd.Flags().Duration(optionNameJaegerFlushInterval, time.Second, "jaeger buffer flush interval")
	cmd.Flags().Bool(optionNameEnableGuzzle, true, "trace outgoing http client calls")
	cmd.Flags().Bool(optionNameEnableRedis, true, "trace redis commands")
	cmd.Flags().Bool(optionNameEnableDB, true, "trace database queries")
	cmd.Flags().Bool(optionNameEnableMethod, false, "trace explicitly marked method calls")
	cmd.Flags().Bool(optionNameEnableException, false, "record exceptions on finished spans")
}

func (c *command) tracingOptions() tracing.Options {
	return tracing.Options{
		Driver:      c.config.GetString(optionNameTracerDriver),
		ServiceName: c.config.GetString(optionNameServiceName),
		Zipkin: tracing.ZipkinOptions{
			EndpointURL:   c.config.GetString(optionNameZipkinEndpointURL),
			LocalAddress:  c.config.GetString(optionNameZipkinLocalAddress),
			Timeout:       c.config.GetDuration(optionNameZipkinTimeout),
			BatchSize:     c.config.GetInt(optionNameZipkinBatchSize),
			BatchInterval: c.config.GetDuration(optionNameZipkinBatchInterval),
			MaxBacklog:    c.config.GetInt(optionNameZipkinMaxBacklog),
			SharedSpans:   c.config.GetBool(optionNameZipkinSharedSpans),
		},
		Jaeger: tracing.JaegerOptions{
			ReportingHost:       c.config.GetString(optionNameJaegerReportingHost),
			ReportingPort:       c.config.GetInt(optionNameJaegerReportingPort),
			MaxBufferLength:     c.config.GetInt(optionNameJaegerMaxBufferLen),
			SamplerType:         c.config.GetString(optionNameJaegerSamplerType),
			SamplerParam:        c.config.GetFloat64(optionNameJaegerSamplerParam),
			BufferFlushInterval: c.config.GetDuration(optionNameJaegerFlushInterval),
		},
	}
}

func (c *command) switches() map[string]bool {
	return map[string]bool{
		switches.Guzzle:    c.config.GetBool(optionNameEnableGuzzle),
		switches.Redis:     c.config.GetBool(optionNameEnableRedis),
		switches.DB:        c.config.GetBool(optionNameEnableDB),
		switches.Method:    c.config.GetBool(optionNameEnableMethod),
		switches.Exception: c.config.GetBool(optionNameEnableException),
	}
}

func newLogger(cmd *cobra.Command, verbosity string) (logging.Logger, error) {
	var logger logging.Logger
	switch verbosity {
	case "0", "silent":
		logger = logging.New(io.Discard, 0)
	case "1", "error":
		logger = logging.New(cmd.OutOrStdout(), logrus.ErrorLevel)
	case "2", "warn":
		logger = logging.New(cmd.OutOrStdout(), logrus.WarnLevel)
	case "3", "info":
		logger = logging.New(cmd.OutOrStdout(), logrus.InfoLevel)
	case "4", "debug":
		logger = logging.New(cmd.OutOrStdout(), logrus.DebugLevel)
	case "5", "trace":
		logger = logging.New(cmd.OutOrStdout(), logrus.TraceLevel)
	default:
		return nil, fmt.Errorf("unknown verbosity level %q", verbosity)
	}
	return logger, nil
}
