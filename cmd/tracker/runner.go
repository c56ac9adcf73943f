package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/km-arc/tracker/framework/app"
	"github.com/km-arc/tracker/framework/logging"
	"github.com/km-arc/tracker/internal/library"
	"github.com/km-arc/tracker/internal/shows"
)

const version = "0.1.0"

// Runner holds what every command needs and provides one method per action.
type Runner struct {
	logger    *log.Logger
	output    io.Writer
	logOutput io.Writer
	envFiles  []string
}

// RunnerOpts configures a Runner. LogOutput is where the booted
// application logs; nil means stderr.
type RunnerOpts struct {
	Logger    *log.Logger
	Output    io.Writer
	LogOutput io.Writer
	EnvFiles  []string
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		logger:    opts.Logger,
		output:    opts.Output,
		logOutput: opts.LogOutput,
		envFiles:  opts.EnvFiles,
	}
}

// Command builds the root command.
func (r *Runner) Command() *cli.Command {
	return &cli.Command{
		Name:    "tracker",
		Usage:   "Track shows and a song library",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
			},
		},
		Commands: []*cli.Command{
			serveCommand(r),
			stateCommand(r),
			commandsCommand(r),
		},
	}
}

// boot builds and boots the application with the feature providers.
func (r *Runner) boot(cmd *cli.Command) (*app.Application, error) {
	opts := []app.Option{
		app.WithConfigFile(cmd.String("config")),
		app.WithLogWriter(r.logOutput),
	}
	if len(r.envFiles) > 0 {
		opts = append(opts, app.WithEnvFiles(r.envFiles...))
	}

	a, err := app.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Register(&library.Provider{}); err != nil {
		return nil, err
	}
	if err := a.Register(&shows.Provider{}); err != nil {
		return nil, err
	}
	if err := a.Boot(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("boot: %w", err)
	}
	return a, nil
}

func (r *Runner) writeJSON(data any) error {
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
