package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reflux"
	refluxviper "github.com/zoobzio/reflux/pkg/viper"
	"go.uber.org/zap"
)

// viperFormats are handled by pkg/viper rather than the built-in parsers.
var viperFormats = map[string]bool{
	"toml":       true,
	"ini":        true,
	"properties": true,
	"props":      true,
	"prop":       true,
	"hcl":        true,
	"tfvars":     true,
	"env":        true,
	"dotenv":     true,
}

type rootOptions struct {
	format   string
	logLevel string

	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "reflux",
		Short:         "Read values from a live-reloading configuration file",
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = logger
			hookSignals(logger)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			capitan.Shutdown()
			if opts.logger != nil {
				_ = opts.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.format, "format", "", "config format: hocon, yaml, json, toml, ini, properties, hcl, dotenv (default: from file extension)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

// open starts a session on path with the parser selected by --format.
func (o *rootOptions) open(ctx context.Context, path string) (*reflux.Session, error) {
	parser, err := parserFor(o.format, path)
	if err != nil {
		return nil, err
	}
	return reflux.Open(ctx, path, reflux.WithParser(parser), reflux.WithErrorHistory(8))
}

func parserFor(format, path string) (reflux.Parser, error) {
	if format == "" {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if viperFormats[ext] {
			return refluxviper.New(ext)
		}
		return reflux.ParserFor(path), nil
	}

	switch format = strings.ToLower(format); format {
	case "hocon", "conf":
		return reflux.HOCONParser{}, nil
	case "yaml", "yml":
		return reflux.YAMLParser{}, nil
	case "json":
		return reflux.JSONParser{}, nil
	case "dotenv":
		return refluxviper.New("env")
	}
	if viperFormats[format] {
		return refluxviper.New(format)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
