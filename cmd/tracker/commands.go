package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/tracker/framework/app"
	"github.com/km-arc/tracker/framework/container"
	"github.com/km-arc/tracker/framework/providers"
	"github.com/km-arc/tracker/framework/state"
)

var formats = []string{"json", "yaml", "toml"}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the command, query and state endpoints over HTTP",
		Action: r.Serve,
	}
}

func stateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Inspect or replace the application state",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Print the state tree",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, yaml or toml",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.StateExport,
			},
			{
				Name:  "import",
				Usage: "Replace the state tree with a previously exported one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Exported state (.json, .yaml, .yml or .toml)",
						Required: true,
					},
				},
				Action: r.StateImport,
			},
		},
	}
}

func commandsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "commands",
		Usage: "List registered commands and queries",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Commands,
	}
}

// Serve boots the application and serves HTTP until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	a, err := r.boot(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// StateExport writes the state snapshot in the requested format.
func (r *Runner) StateExport(_ context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q (want %s)", format, strings.Join(formats, ", "))
	}

	a, err := r.boot(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := r.output
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	return encodeSnapshot(out, format, a.State().Export())
}

// StateImport replaces the state with a snapshot file and persists it when
// persistence is enabled.
func (r *Runner) StateImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}

	a, err := r.boot(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.State().ReplaceState(snap.State)
	if err := persist(ctx, a, snap.State); err != nil {
		return err
	}

	r.logger.Info("state imported", "file", path, "keys", len(snap.State))
	return r.writePlainln("Imported %s", path)
}

// Commands lists the bus registrations.
func (r *Runner) Commands(_ context.Context, cmd *cli.Command) error {
	a, err := r.boot(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	commands, queries := a.Commands().Names(), a.Queries().Names()
	if cmd.Bool("json") {
		return r.writeJSON(map[string][]string{"commands": commands, "queries": queries})
	}
	for _, name := range commands {
		if err := r.writePlainln("command  %s", name); err != nil {
			return err
		}
	}
	for _, name := range queries {
		if err := r.writePlainln("query    %s", name); err != nil {
			return err
		}
	}
	return nil
}

func persist(ctx context.Context, a *app.Application, t state.Tree) error {
	if !a.Config().State.Persist {
		return nil
	}
	p, err := container.Resolve[*state.SQLitePersister](a.Container, providers.KeyPersister)
	if err != nil {
		return err
	}
	if err := p.Save(ctx, t); err != nil {
		return fmt.Errorf("failed to persist imported state: %w", err)
	}
	return nil
}

func validFormat(format string) bool {
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}

func encodeSnapshot(w io.Writer, format string, snap state.Snapshot) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(snap); err != nil {
			return fmt.Errorf("failed to write TOML: %w", err)
		}
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func readSnapshot(path string) (state.Snapshot, error) {
	var snap state.Snapshot

	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snap)
	case ".toml":
		err = toml.Unmarshal(data, &snap)
	default:
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return snap, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if snap.State == nil {
		snap.State = state.Tree{}
	}
	return snap, nil
}
