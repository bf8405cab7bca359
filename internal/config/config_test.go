package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yavdl/yavdl/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yavdl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultCatalogBaseURL, cfg.Catalog.BaseURL)
	assert.Equal(t, defaultWorkers, cfg.Download.Workers)
	assert.True(t, cfg.Subtitles.FilterSpam)
	assert.True(t, cfg.Output.MKV)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
[paths]
temp_dir = "/tmp/yavdl"
output_dir = "/srv/videos"

[download]
workers = 4

[subtitles]
filter_spam = false

[[preference_list]]
name = "hq"
formats = ["22", "35", "default"]
default = true

[[preference_list]]
name = "webm"
formats = ["46", "45", "44", "43"]

[[mangler]]
name = "phpproxy"
type = "gateway"
base_url = "http://gw.example.net/proxy"
default = true

[[mangler]]
name = "passthrough"
type = "script"
script = "function(url) { return url; }"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/videos", cfg.Paths.OutputDir)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.False(t, cfg.Subtitles.FilterSpam)
	// Unspecified sections keep their defaults.
	assert.Equal(t, defaultMaxRetries, cfg.Download.MaxRetries)

	rt, err := cfg.Compile()
	require.NoError(t, err)

	assert.Equal(t, "hq", rt.DefaultList.Name)
	assert.Equal(t, []types.FormatID{22, 35, types.FormatDefault}, rt.DefaultList.Entries)

	webm, err := rt.List("webm")
	require.NoError(t, err)
	assert.Equal(t, []types.FormatID{46, 45, 44, 43}, webm.Entries)

	// The built-in list stays addressable alongside configured ones.
	builtin, err := rt.List("builtin")
	require.NoError(t, err)
	assert.Len(t, builtin.Entries, 6)

	_, err = rt.List("nope")
	require.Error(t, err)

	assert.Equal(t, "phpproxy", rt.Registry.DefaultName())
	transform, err := rt.Registry.Resolve("passthrough")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/x", transform("http://example.com/x"))
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate_DefaultListCardinality(t *testing.T) {
	noDefault := writeConfig(t, `
[[preference_list]]
name = "a"
formats = ["22"]
`)
	_, err := Load(noDefault)
	require.ErrorContains(t, err, "exactly one preference list")

	twoDefaults := writeConfig(t, `
[[preference_list]]
name = "a"
formats = ["22"]
default = true

[[preference_list]]
name = "b"
formats = ["18"]
default = true
`)
	_, err = Load(twoDefaults)
	require.ErrorContains(t, err, "exactly one preference list")
}

func TestValidate_BadFormatEntry(t *testing.T) {
	path := writeConfig(t, `
[[preference_list]]
name = "a"
formats = ["22", "high"]
default = true
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "invalid format id")
}

func TestValidate_ManglerErrors(t *testing.T) {
	twoDefaults := writeConfig(t, `
[[mangler]]
name = "a"
type = "gateway"
base_url = "http://a.example"
default = true

[[mangler]]
name = "b"
type = "gateway"
base_url = "http://b.example"
default = true
`)
	_, err := Load(twoDefaults)
	require.ErrorContains(t, err, "at most one mangler")

	badType := writeConfig(t, `
[[mangler]]
name = "a"
type = "plugin"
`)
	_, err = Load(badType)
	require.ErrorContains(t, err, "unknown type")

	scriptAndFile := writeConfig(t, `
[[mangler]]
name = "a"
type = "script"
script = "function(url){return url;}"
script_file = "/tmp/x.js"
`)
	_, err = Load(scriptAndFile)
	require.ErrorContains(t, err, "exactly one of")
}

func TestCompile_ScriptCompileErrorFailsLoad(t *testing.T) {
	path := writeConfig(t, `
[[mangler]]
name = "broken"
type = "script"
script = "function(url) { return"
`)
	cfg, err := Load(path)
	require.NoError(t, err, "syntax is only checked at compile time")
	_, err = cfg.Compile()
	require.Error(t, err)
}

func TestCompile_ScriptFile(t *testing.T) {
	scriptPath := filepath.Join(t.TempDir(), "mangle.js")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`function(url) { return url + "#m"; }`), 0o644))
	cfg := Default()
	cfg.Manglers = []Mangler{{Name: "file", Type: "script", ScriptFile: scriptPath}}
	require.NoError(t, cfg.Validate())

	rt, err := cfg.Compile()
	require.NoError(t, err)
	transform, err := rt.Registry.Resolve("file")
	require.NoError(t, err)
	assert.Equal(t, "http://e.example/#m", transform("http://e.example/"))
}
