package main

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/meigma/arx/internal/container"
	"github.com/meigma/arx/internal/testutil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func fixture() []testutil.Node {
	return []testutil.Node{
		testutil.Dir("etc",
			testutil.File("hostname", []byte("arx\n")),
			testutil.Link("name", "hostname"),
		),
		testutil.File("README", []byte("read me\n")),
	}
}

func runCmd(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Commands(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, fixture(), testutil.WithPacks(container.CompressionZstd))

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{"cat", []string{"cat", path, "etc/hostname"}, []string{"arx\n"}},
		{"cat follows links", []string{"cat", path, "/etc/name"}, []string{"arx\n"}},
		{"ls root", []string{"ls", path}, []string{"README", "etc", "drwxr-xr-x"}},
		{"ls dir", []string{"ls", path, "etc"}, []string{"hostname", "name -> hostname"}},
		{"stat file", []string{"stat", path, "etc/hostname"}, []string{"kind:  File", "size:  4", "parent: "}},
		{"stat root", []string{"stat", path, "/"}, []string{"kind:  Dir", "index: root", "children: 2 [0, 2)"}},
		{"readlink", []string{"readlink", path, "etc/name"}, []string{"hostname\n"}},
		{"info", []string{"info", path}, []string{"id:      sha256:", "entries: 4", "+zstd"}},
		{"stat json", []string{"stat", "--format", "json", path, "etc/name"}, []string{`"kind": "Link"`, `"target": "hostname"`}},
		{"info yaml", []string{"info", "-o", "yaml", path}, []string{"entries: 4", "mediaType: application/vnd.meigma.arx.pack.v1+zstd"}},
		{"ls color", []string{"ls", "--color", "always", path}, []string{"\x1b[", "README"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, out, errOut := runCmd(t, tt.args...)
			require.Equal(t, 0, code, errOut)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, fixture())
	notArchive := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(notArchive, []byte("hello"), 0o600))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		contains string
	}{
		{"no args", nil, 2, "usage"},
		{"unknown command", []string{"rm", path}, 2, "unknown command"},
		{"bad flag", []string{"-nope", "ls", path}, 2, "nope"},
		{"missing entry", []string{"stat", path, "etc/passwd"}, 1, "entry not found"},
		{"not a directory", []string{"ls", path, "README"}, 1, "not a dir"},
		{"cat directory", []string{"cat", path, "etc"}, 1, "invalid argument"},
		{"readlink on file", []string{"readlink", path, "README"}, 1, "not a link"},
		{"not a container", []string{"info", notArchive}, 1, "cannot open container"},
		{"extra argument", []string{"info", path, "etc"}, 2, "usage: arx info"},
		{"missing path", []string{"cat", path}, 2, "usage: arx cat"},
		{"bad format", []string{"stat", "--format", "toml", path}, 2, "unknown format"},
		{"bad color", []string{"ls", "--color", "sometimes", path}, 2, "unknown color mode"},
		{"bad header", []string{"-H", "nocolon", "info", "http://127.0.0.1:1/x"}, 2, "Key: Value"},
		{"serve without location", []string{"serve"}, 2, "usage: arx serve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, _, errOut := runCmd(t, tt.args...)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, errOut, tt.contains)
		})
	}
}

func TestRun_HTTP(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, fixture())
	var sawHeader atomic.Bool
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("X-Token") == "secret" {
			sawHeader.Store(true)
		}
		nethttp.ServeContent(w, r, "test.arx", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	code, out, errOut := runCmd(t, "-v", "-H", "X-Token: secret", "cat", server.URL, "etc/name")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "arx\n", out)
	assert.True(t, sawHeader.Load())
	assert.True(t, strings.Contains(errOut, "archive opened"), errOut)
}

func TestRun_NoColorByDefault(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, fixture())
	code, out, errOut := runCmd(t, "ls", path)
	require.Equal(t, 0, code, errOut)
	assert.NotContains(t, out, "\x1b[")
}

func TestRun_FormatsDecode(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, fixture(), testutil.WithPacks(container.CompressionNone, container.CompressionZstd))

	code, out, errOut := runCmd(t, "info", "--format", "json", path)
	require.Equal(t, 0, code, errOut)
	var fromJSON infoReport
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))

	code, out, errOut = runCmd(t, "info", "--format", "yaml", path)
	require.Equal(t, 0, code, errOut)
	var fromYAML infoReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))

	assert.Equal(t, fromJSON, fromYAML)
	assert.Equal(t, 4, fromJSON.Entries)
	assert.Len(t, fromJSON.Packs, 2)
}
