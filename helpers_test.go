package arx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/arx/internal/testutil"
)

// scenarioTree is a root holding a single directory "a" with a file and a
// link, so a sits at index 0 and its children occupy [1, 3).
func scenarioTree() []testutil.Node {
	return []testutil.Node{
		testutil.Dir("a",
			testutil.File("b.txt", []byte("hello, world\n")),
			testutil.Link("c", "b.txt"),
		),
	}
}

// sampleTree exercises nesting, links of every flavour, empty files and
// directories, and duplicated content.
func sampleTree() []testutil.Node {
	return []testutil.Node{
		testutil.Dir("etc",
			testutil.File("hostname", []byte("arx\n")),
			testutil.File("motd", []byte("welcome\n")),
			testutil.Dir("nginx",
				testutil.File("nginx.conf", []byte("worker_processes 4;\n")),
				testutil.Dir("conf.d"),
			),
			testutil.Link("name", "hostname"),
		),
		testutil.Dir("usr",
			testutil.Dir("bin",
				testutil.File("tool", []byte("#!/bin/sh\necho tool\n")),
			),
			testutil.Link("sbin", "bin"),
			testutil.Link("conf", "/etc/nginx/nginx.conf"),
			testutil.Link("up", "../etc/motd"),
		),
		testutil.File("empty", nil),
		testutil.File("copy-of-motd", []byte("welcome\n")),
		testutil.Link("dangling", "nowhere"),
		testutil.Link("loop", "loop"),
	}
}

// openTestArchive writes nodes to a container file and opens it.
func openTestArchive(t *testing.T, nodes []testutil.Node, opts ...testutil.BuildOption) *Archive {
	t.Helper()
	a, err := Open(testutil.WriteFile(t, nodes, opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func mustEntry(t *testing.T, a *Archive, path string) Entry {
	t.Helper()
	e, err := a.Entry(path)
	require.NoError(t, err, "entry %q", path)
	return e
}
