package main

import (
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/meigma/arx"
	arxhttp "github.com/meigma/arx/http"
)

// exitUsage is the exit code for command line mistakes.
const exitUsage = 2

func newApp(stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:                      "arx",
		Usage:                     "inspect arx containers",
		Writer:                    stdout,
		ErrWriter:                 stderr,
		HideVersion:               true,
		DisableSliceFlagSeparator: true,
		// run reports errors and picks the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
		OnUsageError:   usageError,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log debug output to stderr"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "HTTP request timeout"},
			&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "extra HTTP header `\"Key: Value\"`"},
			&cli.Uint64Flag{Name: "max-pack-size", Value: arx.DefaultMaxPackSize, Usage: "limit on the unpacked size of a compressed pack (0 disables)"},
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list a directory",
				ArgsUsage: "LOCATION [PATH]",
				Flags:     []cli.Flag{colorFlag()},
				Action:    withArchive(1, 2, list),
			},
			{
				Name:      "stat",
				Usage:     "show an entry without following links",
				ArgsUsage: "LOCATION [PATH]",
				Flags:     []cli.Flag{formatFlag()},
				Action:    withArchive(1, 2, stat),
			},
			{
				Name:      "cat",
				Usage:     "write a file's content to stdout, following links",
				ArgsUsage: "LOCATION PATH",
				Action:    withArchive(2, 2, cat),
			},
			{
				Name:      "readlink",
				Usage:     "print a link's target",
				ArgsUsage: "LOCATION PATH",
				Action:    withArchive(2, 2, readlink),
			},
			{
				Name:      "info",
				Usage:     "show the archive id and its packs",
				ArgsUsage: "LOCATION",
				Flags:     []cli.Flag{formatFlag()},
				Action:    withArchive(1, 1, info),
			},
			serveCommand(),
		},
		Action: func(c *cli.Context) error {
			if c.Args().Present() {
				return cli.Exit(fmt.Sprintf("unknown command %q", c.Args().First()), exitUsage)
			}
			return cli.Exit("usage: arx [global flags] COMMAND [args...] (see arx --help)", exitUsage)
		},
	}
	for _, cmd := range app.Commands {
		cmd.OnUsageError = usageError
	}
	return app
}

// usageError turns flag parsing failures into usage exits.
func usageError(_ *cli.Context, err error, _ bool) error {
	return cli.Exit(err.Error(), exitUsage)
}

// withArchive opens LOCATION, the first argument, and hands the archive
// and the optional PATH argument to fn. Both bounds count LOCATION.
func withArchive(minArgs, maxArgs int, fn func(*cli.Context, *arx.Archive, string) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < minArgs || c.NArg() > maxArgs {
			return cli.Exit(fmt.Sprintf("usage: arx %s %s", c.Command.Name, c.Command.ArgsUsage), exitUsage)
		}
		a, err := openArchive(c, c.Args().Get(0))
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(c, a, c.Args().Get(1))
	}
}

// newLogger logs at level, or at debug when --verbose is set.
func newLogger(c *cli.Context, w io.Writer, level slog.Level) *slog.Logger {
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func openArchive(c *cli.Context, location string) (*arx.Archive, error) {
	return openWithLogger(c, location, newLogger(c, c.App.ErrWriter, slog.LevelWarn))
}

func openWithLogger(c *cli.Context, location string, logger *slog.Logger) (*arx.Archive, error) {
	opts := []arx.Option{arx.WithLogger(logger), arx.WithMaxPackSize(c.Uint64("max-pack-size"))}
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return arx.Open(location, opts...)
	}

	srcOpts := []arxhttp.Option{
		arxhttp.WithClient(&nethttp.Client{Timeout: c.Duration("timeout")}),
		arxhttp.WithLogger(logger),
		arxhttp.WithVersionPin(),
	}
	for _, h := range c.StringSlice("header") {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, cli.Exit(fmt.Sprintf("header %q: want \"Key: Value\"", h), exitUsage)
		}
		srcOpts = append(srcOpts, arxhttp.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}
	src, err := arxhttp.NewSource(location, srcOpts...)
	if err != nil {
		return nil, err
	}
	return arx.OpenSource(src, opts...)
}
