package main

import (
	"errors"
	"os"
	"path"

	"github.com/alecthomas/kong"

	"github.com/logcar/logcar/internal/cli"
	"github.com/logcar/logcar/internal/logger"
)

var version = "logcar v0.1.0"

const (
	defaultAppDir        = ".logcar"
	defaultLogDir        = "log"
	defaultLogFileName   = "logcar.log"
	defaultLogMaxSize    = 100
	defaultLogMaxBackups = 5
)

// LogOpts binds the logging flags shared across every subcommand.
type LogOpts struct {
	Level  string `help:"Logging level (debug, info, warn, error)" default:"info" envvar:"LOGCAR_LOG_LEVEL"`
	Debug  bool   `help:"Enable debug logging (overrides --level)"                envvar:"LOGCAR_DEBUG"`
	Stream bool   `help:"Log to stdout/stderr instead of a rotating log file"     envvar:"LOGCAR_LOG_STREAM"`
}

// CLI is the top-level kong command tree.
type CLI struct {
	Serve  cli.ServeCmd  `cmd:"" help:"Run the HTTP CRUD/file server"`
	Put    cli.PutCmd    `cmd:"" help:"Create a record from a JSON value"`
	Get    cli.GetCmd    `cmd:"" help:"Read a record by id"`
	Del    cli.DelCmd    `cmd:"" help:"Delete a record by id"`
	Batch  cli.BatchCmd  `cmd:"" help:"Run create/update/delete operations from a newline-delimited JSON file"`
	List   cli.ListCmd   `cmd:"" help:"Run a search query against stored records"`
	Doctor cli.DoctorCmd `cmd:"" help:"Validate configuration and write a resolved-config snapshot"`

	LogOpts LogOpts          `embed:"" prefix:"log-" help:"Logging options"`
	Version kong.VersionFlag `help:"Show version information" short:"V"`
}

func createLogger(opts LogOpts) (logger.Logger, error) {
	level := opts.Level
	if opts.Debug {
		level = "debug"
	}

	consoleLogger := logger.NewConsoleLogger(level)
	if opts.Stream {
		return consoleLogger, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	logDir := path.Join(homeDir, defaultAppDir, defaultLogDir)
	fileLogger, err := logger.NewFileLogger(logDir, defaultLogFileName, defaultLogMaxSize, defaultLogMaxBackups)
	if err != nil {
		return nil, err
	}

	return logger.NewMultiLogger(fileLogger, consoleLogger), nil
}

func main() {
	cliApp := &CLI{}
	ctx := kong.Parse(cliApp,
		kong.Name("logcar"),
		kong.Description("A log-line-as-storage record engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)

	lg, err := createLogger(cliApp.LogOpts)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}
	defer func() {
		if c, ok := lg.(logger.Closeable); ok {
			_ = c.Close()
		}
	}()

	err = ctx.Run(lg)
	if err != nil {
		if errors.Is(err, cli.ErrNotImplemented) {
			os.Exit(2)
		}
		ctx.FatalIfErrorf(err)
	}
}
