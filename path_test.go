package arx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"root slash", "/", []string{}},
		{"many slashes", "///", []string{}},
		{"single", "etc", []string{"etc"}},
		{"nested", "etc/nginx/nginx.conf", []string{"etc", "nginx", "nginx.conf"}},
		{"leading slash", "/etc/nginx", []string{"etc", "nginx"}},
		{"trailing slash", "etc/nginx/", []string{"etc", "nginx"}},
		{"repeated slashes", "etc//nginx", []string{"etc", "nginx"}},
		{"dots are names", "./a/../b", []string{".", "a", "..", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SplitPath(tt.input))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"leading slash", "/etc/nginx", "etc/nginx"},
		{"trailing slash", "etc/nginx/", "etc/nginx"},
		{"both slashes", "/etc/nginx/", "etc/nginx"},
		{"empty string", "", ""},
		{"root slash", "/", ""},
		{"already normal", "a/b.txt", "a/b.txt"},
		{"repeated", "a//b///c", "a/b/c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizePath(tt.input))
		})
	}
}
