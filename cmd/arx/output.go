package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: "format", Aliases: []string{"o"}, Value: formatText, Usage: "output format: text, json or yaml"}
}

func colorFlag() cli.Flag {
	return &cli.StringFlag{Name: "color", Value: "auto", Usage: "colorize output: auto, always or never"}
}

// report is a value that renders itself as text; json and yaml use its
// struct tags.
type report interface {
	writeText(w io.Writer)
}

func writeReport(c *cli.Context, r report) error {
	w := c.App.Writer
	switch f := c.String("format"); f {
	case formatText, "":
		r.writeText(w)
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		out, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return cli.Exit(fmt.Sprintf("unknown format %q", f), exitUsage)
	}
}

// palette colors ls output by entry kind.
type palette struct {
	dir  func(a ...any) string
	link func(a ...any) string
}

func newPalette(c *cli.Context) (*palette, error) {
	var enabled bool
	switch when := c.String("color"); when {
	case "always":
		enabled = true
	case "never":
		enabled = false
	case "auto", "":
		f, ok := c.App.Writer.(*os.File)
		enabled = ok && isatty.IsTerminal(f.Fd())
	default:
		return nil, cli.Exit(fmt.Sprintf("unknown color mode %q", when), exitUsage)
	}

	dir := color.New(color.FgBlue, color.Bold)
	link := color.New(color.FgCyan)
	for _, col := range []*color.Color{dir, link} {
		if enabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return &palette{dir: dir.SprintFunc(), link: link.SprintFunc()}, nil
}
