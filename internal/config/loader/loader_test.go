package loader

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestTOMLLoader(t *testing.T) {
	var fsys FileSystem = fstest.MapFS{
		"ralphmgr.toml": {Data: []byte("[git]\nremote = \"upstream\"\nlog_limit = 3\n")},
	}

	data, err := NewTOMLLoaderWithFS(fsys, "ralphmgr.toml").Load()
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	git := data["git"].(map[string]any)
	if git["remote"] != "upstream" || git["log_limit"] != int64(3) {
		t.Errorf("git = %v", git)
	}

	data, err = NewTOMLLoaderWithFS(fsys, "missing.toml").Load()
	if data != nil || err != nil {
		t.Errorf("missing file = %v, %v", data, err)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	_, err := NewTOMLLoader("").LoadFromReader(strings.NewReader("[log\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if pe.Path != "<reader>" || pe.Line == 0 {
		t.Errorf("ParseError = %+v", pe)
	}
}

func TestYAMLLoader(t *testing.T) {
	data, err := NewYAMLLoader("").LoadFromReader(strings.NewReader("process:\n  shell: sh\n  grace_period: 3s\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"process": map[string]any{"shell": "sh", "grace_period": "3s"}}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}

	if _, err := NewYAMLLoader("").LoadFromReader(strings.NewReader("a: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestForPath(t *testing.T) {
	fsys := DefaultFS()
	tests := []struct {
		path string
		want string
	}{
		{"a.toml", "*loader.TOMLLoader"},
		{"a.TOML", "*loader.TOMLLoader"},
		{"a.yaml", "*loader.YAMLLoader"},
		{"a.yml", "*loader.YAMLLoader"},
	}
	for _, tt := range tests {
		l, err := ForPath(fsys, tt.path)
		if err != nil {
			t.Fatalf("ForPath(%q) error = %v", tt.path, err)
		}
		if got := reflect.TypeOf(l).String(); got != tt.want {
			t.Errorf("ForPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}

	if _, err := ForPath(fsys, "a.ini"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ForPath(a.ini) error = %v", err)
	}
}

func TestEnvLoader(t *testing.T) {
	env := map[string]string{
		"RALPHMGR_SHELL":           "sh",
		"RALPHMGR_LOG_LEVEL":       "debug",
		"RALPHMGR_GIT_AUTHOR_NAME": "Ralph",
		"RALPHMGR_GIT_AUTO_SYNC":   "off",
		"RALPHMGR_GITHUB_LIMIT":    "7",
		"RALPHMGR_CONFIG":          "/etc/ralphmgr.toml",
		"HOME":                     "/root",
	}
	l := NewEnvLoader(DefaultEnvPrefix)
	l.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	l.environ = func() []string {
		out := make([]string, 0, len(env))
		for k, v := range env {
			out = append(out, k+"="+v)
		}
		return out
	}

	data, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"process": map[string]any{"shell": "sh"},
		"log":     map[string]any{"level": "debug"},
		"git":     map[string]any{"author_name": "Ralph", "auto_sync": false},
		"github":  map[string]any{"limit": int64(7)},
	}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"On", true},
		{"no", false},
		{"42", int64(42)},
		{"5s", "5s"},
		{"bash", "bash"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
