package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type nested struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

type testConfig struct {
	Name        string   `json:"name" yaml:"name" env:"MATRUSP_TEST_NAME"`
	Concurrency int      `json:"concurrency" yaml:"concurrency" env:"MATRUSP_TEST_CONCURRENCY"`
	Units       []int    `json:"units" yaml:"units"`
	Nested      nested   `json:"nested" yaml:"nested"`
	Tags        []string `json:"tags" yaml:"tags"`
}

func write(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadConfigJson5(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "crawler.json5"), `{
		// comments are fine
		name: "crawler",
		concurrency: 100,
		units: [18, 55],
		nested: { endpoint: "localhost:4317" },
	}`)
	write(t, filepath.Join(dir, "crawler.local.json5"), `{ concurrency: 8 }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "crawler.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{
		Name:        "crawler",
		Concurrency: 8,
		Units:       []int{18, 55},
		Nested:      nested{Endpoint: "localhost:4317"},
	}, config)
}

func TestReadConfigYaml(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "crawler.yaml"), "name: crawler\nunits: [90]\ntags:\n  - a\n  - b\n")

	config, err := ReadConfig[testConfig](filepath.Join(dir, "crawler.yaml"))
	require.NoError(t, err)
	require.Equal(t, "crawler", config.Name)
	require.Equal(t, []int{90}, config.Units)
	require.Equal(t, []string{"a", "b"}, config.Tags)
}

func TestReadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadConfig[testConfig](filepath.Join(dir, "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)

	write(t, filepath.Join(dir, "bad.json5"), `{ name: `)
	_, err = ReadConfig[testConfig](filepath.Join(dir, "bad.json5"))
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)

	write(t, filepath.Join(dir, "crawler.toml"), `name = "x"`)
	_, err = ReadConfig[testConfig](filepath.Join(dir, "crawler.toml"))
	require.ErrorContains(t, err, "unsupported config format")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MATRUSP_TEST_CONCURRENCY", "12")

	config := testConfig{Name: "from-file", Concurrency: 100}
	require.NoError(t, ApplyEnv(&config))
	require.Equal(t, "from-file", config.Name)
	require.Equal(t, 12, config.Concurrency)
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.json5")
	write(t, path, `{}`)

	require.Equal(t, path, Locate(path))
	require.Equal(t, "does-not-exist.json5", Locate("does-not-exist.json5"))
}
