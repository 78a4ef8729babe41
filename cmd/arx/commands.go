package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/meigma/arx"
)

func list(c *cli.Context, a *arx.Archive, path string) error {
	colors, err := newPalette(c)
	if err != nil {
		return err
	}
	entries, err := a.List(path)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 1, ' ', 0)
	for _, e := range entries {
		name := e.Name()
		switch e.Kind() {
		case arx.KindDir:
			name = colors.dir(name)
		case arx.KindLink:
			target, _ := e.LinkTarget()
			name = colors.link(name) + " -> " + target
		}
		size := "-"
		if n, err := e.ContentSize(); err == nil {
			size = strconv.FormatUint(n, 10)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			e.Mode(), e.Owner(), e.Group(), size, e.ModTime().UTC().Format(time.DateTime), name)
	}
	return tw.Flush()
}

// entryReport describes one entry for stat and the HTTP API.
type entryReport struct {
	Path     string          `json:"path" yaml:"path"`
	Kind     string          `json:"kind" yaml:"kind"`
	Index    string          `json:"index" yaml:"index"`
	Parent   string          `json:"parent,omitempty" yaml:"parent,omitempty"`
	Mode     string          `json:"mode" yaml:"mode"`
	Owner    uint32          `json:"owner" yaml:"owner"`
	Group    uint32          `json:"group" yaml:"group"`
	Mtime    string          `json:"mtime" yaml:"mtime"`
	Size     *uint64         `json:"size,omitempty" yaml:"size,omitempty"`
	Content  string          `json:"content,omitempty" yaml:"content,omitempty"`
	Target   string          `json:"target,omitempty" yaml:"target,omitempty"`
	Children *childrenReport `json:"children,omitempty" yaml:"children,omitempty"`
}

type childrenReport struct {
	First uint32 `json:"first" yaml:"first"`
	Count uint32 `json:"count" yaml:"count"`
}

func indexString(i arx.Index) string {
	if i == arx.RootIndex {
		return "root"
	}
	return strconv.FormatUint(uint64(i), 10)
}

func newEntryReport(e arx.Entry) *entryReport {
	r := &entryReport{
		Path:  "/" + e.Path(),
		Kind:  e.Kind().String(),
		Index: indexString(e.Index()),
		Mode:  e.Mode().String(),
		Owner: e.Owner(),
		Group: e.Group(),
		Mtime: e.ModTime().UTC().Format(time.RFC3339),
	}
	if parent, ok := e.Parent(); ok {
		r.Parent = indexString(parent)
	}
	switch e.Kind() {
	case arx.KindFile:
		size, _ := e.ContentSize()
		addr, _ := e.ContentAddress()
		r.Size = &size
		r.Content = addr.String()
	case arx.KindLink:
		r.Target, _ = e.LinkTarget()
	case arx.KindDir:
		rng, _ := e.Children()
		r.Children = &childrenReport{First: uint32(rng.Begin), Count: rng.Size}
	}
	return r
}

func (r *entryReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "path:  %s\n", r.Path)
	fmt.Fprintf(w, "kind:  %s\n", r.Kind)
	fmt.Fprintf(w, "index: %s\n", r.Index)
	if r.Parent != "" {
		fmt.Fprintf(w, "parent: %s\n", r.Parent)
	}
	fmt.Fprintf(w, "mode:  %s\n", r.Mode)
	fmt.Fprintf(w, "owner: %d\n", r.Owner)
	fmt.Fprintf(w, "group: %d\n", r.Group)
	fmt.Fprintf(w, "mtime: %s\n", r.Mtime)
	if r.Size != nil {
		fmt.Fprintf(w, "size:  %d\n", *r.Size)
		fmt.Fprintf(w, "content: %s\n", r.Content)
	}
	if r.Kind == arx.KindLink.String() {
		fmt.Fprintf(w, "target: %s\n", r.Target)
	}
	if r.Children != nil {
		end := uint64(r.Children.First) + uint64(r.Children.Count)
		fmt.Fprintf(w, "children: %d [%d, %d)\n", r.Children.Count, r.Children.First, end)
	}
}

func stat(c *cli.Context, a *arx.Archive, path string) error {
	e, err := a.Entry(path)
	if err != nil {
		return err
	}
	return writeReport(c, newEntryReport(e))
}

func cat(c *cli.Context, a *arx.Archive, path string) error {
	f, err := a.Open(arx.NormalizePath(path))
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(c.App.Writer, f); err != nil {
		return fmt.Errorf("cat %s: %w", path, err)
	}
	return nil
}

func readlink(c *cli.Context, a *arx.Archive, path string) error {
	e, err := a.Entry(path)
	if err != nil {
		return err
	}
	target, err := e.LinkTarget()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, target)
	return nil
}

// infoReport describes an archive for info and the HTTP API.
type infoReport struct {
	ID      string       `json:"id" yaml:"id"`
	Entries int          `json:"entries" yaml:"entries"`
	Packs   []packReport `json:"packs" yaml:"packs"`
}

type packReport struct {
	ID        string `json:"id" yaml:"id"`
	MediaType string `json:"mediaType" yaml:"mediaType"`
	Digest    string `json:"digest" yaml:"digest"`
	Size      int64  `json:"size" yaml:"size"`
	Blobs     string `json:"blobs" yaml:"blobs"`
}

func newInfoReport(a *arx.Archive) *infoReport {
	r := &infoReport{ID: a.ID().String(), Entries: a.Len(), Packs: []packReport{}}
	for _, p := range a.Packs() {
		r.Packs = append(r.Packs, packReport{
			ID:        p.Annotations[arx.AnnotationPackID],
			MediaType: p.MediaType,
			Digest:    p.Digest.String(),
			Size:      p.Size,
			Blobs:     p.Annotations[arx.AnnotationPackBlobs],
		})
	}
	return r
}

func (r *infoReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "id:      %s\n", r.ID)
	fmt.Fprintf(w, "entries: %d\n", r.Entries)
	fmt.Fprintf(w, "packs:   %d\n", len(r.Packs))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range r.Packs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d bytes\t%s blobs\n", p.ID, p.MediaType, p.Digest, p.Size, p.Blobs)
	}
	_ = tw.Flush() //nolint:errcheck // w reports its own errors on the next write
}

func info(c *cli.Context, a *arx.Archive, _ string) error {
	return writeReport(c, newInfoReport(a))
}
