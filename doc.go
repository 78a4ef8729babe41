//go:generate flatc --go --go-namespace fb -o internal schema/index.fbs

// Package arx provides read-only access to arx archive containers.
//
// A container is a single immutable file holding a directory tree (files,
// symbolic links, directories) and de-duplicated file content stored in one
// or more blob pools. Entries live in a flat table addressed by dense
// indexes; a directory names its children as a contiguous range of that
// table. File content is reached through a [ContentAddress] rather than by
// path.
//
// # Quick Start
//
//	a, err := arx.Open("site.arx")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	e, err := a.Entry("static/index.html")
//	if err != nil {
//	    return err
//	}
//	addr, err := e.ContentAddress()
//	if err != nil {
//	    return err // not a file
//	}
//	content, err := a.ReadContent(addr)
//
// # Opening
//
// [Open] reads a container file from the local filesystem and [OpenFs] from
// any afero.Fs. [OpenSource] takes any [ByteSource]; the
// github.com/meigma/arx/http package provides one backed by HTTP range
// requests:
//
//	src, err := http.NewSource("https://example.com/site.arx")
//	if err != nil {
//	    return err
//	}
//	a, err := arx.OpenSource(src)
//
// # Entries
//
// [Entry] is a closed union over files, links, and directories. Metadata
// accessors work on every kind; kind-specific accessors fail with
// [ErrNotAFile], [ErrNotALink], or [ErrNotADir] when called on the wrong kind.
//
// [Archive.Entry] resolves a path without following symbolic links.
// [Archive.Children] and [Archive.List] walk a directory's children in table
// order.
//
// # Standard library
//
// [Archive] implements fs.FS, fs.StatFS, fs.ReadFileFS, fs.ReadDirFS and
// fs.ReadLinkFS.
package arx
