// Package configutil reads layered configuration files.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

const AppName = "matrusp"

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

func decode(ext string, data []byte, out any) error {
	switch strings.ToLower(ext) {
	case "yaml", "yml":
		return yaml.Unmarshal(data, out)
	case "json5", "json", "":
		return json5.Unmarshal(data, out)
	}
	return fmt.Errorf("unsupported config format '.%s'", ext)
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// json5 and yaml files are understood.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	dirname := filepath.Dir(name)
	basename := filepath.Base(name)
	prefixname, ext := splitExt(basename)

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		err = decode(ext, defaultFile, &out)
		if err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		allNotFound = false
	}

	localFilepath := filepath.Join(
		dirname,
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
	localFile, err := os.ReadFile(localFilepath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		err = decode(ext, localFile, &override)
		if err != nil {
			return out, fmt.Errorf("%s: %w", localFilepath, err)
		}
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}

	return out, nil
}

// Locate resolves a configuration file name. A name that exists relative to
// the working directory wins, otherwise the XDG config directories are
// searched for matrusp/<name>. The name is returned as is when nothing is
// found.
func Locate(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	_, err := os.Stat(name)
	if err == nil {
		return name
	}
	found, err := xdg.SearchConfigFile(filepath.Join(AppName, name))
	if err != nil {
		return name
	}
	return found
}

// ApplyEnv overrides the fields of config tagged with `env` with the
// environment variables that are set.
func ApplyEnv[T any](config *T) error {
	return cleanenv.ReadEnv(config)
}
