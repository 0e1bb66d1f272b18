package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bsncloud/internal/app"
	"github.com/florianilch/bsncloud/internal/credentials"
	"github.com/florianilch/bsncloud/internal/observability"
)

// runner carries state set up in Before and shared by all actions.
type runner struct {
	app      *app.App
	shutdown observability.ShutdownFunc

	stdout  io.Writer
	stderr  io.Writer
	environ func() []string
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	r := &runner{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		environ: os.Environ,
	}
	return r.run(ctx, args, version, commit)
}

func (r *runner) run(ctx context.Context, args []string, version, commit string) error {
	cmd := &cli.Command{
		Name:    "bsncloud",
		Usage:   "BSN Cloud and remote DWS client",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
				Value: observability.FormatText,
			},
		},
		Writer:    r.stdout,
		ErrWriter: r.stderr,
		Before:    r.before,
		After:     r.after,
		Commands: []*cli.Command{
			authCommand(r),
			devicesCommand(r),
			provisioningCommand(r),
		},
	}

	return cmd.Run(ctx, args)
}

// before loads config, sets up logging and wires the app.
func (r *runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, r.environ)
	if err != nil {
		return ctx, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := observability.ParseLevel(cfg.Log.Level)
	if err != nil {
		return ctx, err
	}

	// Logs go to stderr so command output stays machine readable.
	r.shutdown, err = observability.Instrument(ctx, observability.Config{
		Level:    level,
		Format:   cfg.Log.Format,
		Exporter: cfg.OTel.Exporter,
		Writer:   r.stderr,
	})
	if err != nil {
		return ctx, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	r.app, err = app.New(cfg, app.WithCredentialOptions(credentials.WithEnviron(r.environ)))
	if err != nil {
		return ctx, fmt.Errorf("failed to create app: %w", err)
	}

	return ctx, nil
}

func (r *runner) after(ctx context.Context, _ *cli.Command) error {
	if r.shutdown == nil {
		return nil
	}
	return r.shutdown(context.WithoutCancel(ctx))
}

// printJSON writes raw indented, followed by a newline.
func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// requireArg returns the first positional argument or a usage error.
func requireArg(cmd *cli.Command, name string) (string, error) {
	if arg := cmd.Args().First(); arg != "" {
		return arg, nil
	}
	return "", errors.New(name + " argument is required")
}
