// Package settings loads repository-local try server defaults.
// Two files are recognized at the checkout root: the legacy
// codereview.settings "KEY: value" file, and tryserver.yaml
// which overrides it field by field.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	legacyFile = "codereview.settings"
	yamlFile   = "tryserver.yaml"
)

// Settings holds the repository-provided try server defaults.
// Zero values mean "not configured".
type Settings struct {
	// HTTPHost is the try server host for direct delivery.
	HTTPHost string `yaml:"http_host"`

	// HTTPPort is the try server port for direct delivery.
	HTTPPort string `yaml:"http_port"`

	// SVNRepo is the shared store URL for mediated delivery.
	SVNRepo string `yaml:"svn_repo"`

	// Project is the default project name.
	Project string `yaml:"project"`

	// Root is the default patch root subdirectory.
	Root string `yaml:"root"`

	// PatchLevel is the default -pN strip level.
	PatchLevel int `yaml:"patchlevel"`
}

// Load reads the settings files under dir. Missing files are
// not an error; both may be absent, yielding zero settings.
func Load(dir string) (*Settings, error) {
	const errCtx = "loading try server settings"

	s := &Settings{}

	data, err := os.ReadFile(
		filepath.Join(dir, legacyFile),
	) //nolint:gosec // checkout-root file by contract
	if err == nil {
		s.applyLegacy(string(data))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	data, err = os.ReadFile(
		filepath.Join(dir, yamlFile),
	) //nolint:gosec // checkout-root file by contract
	if err == nil {
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf(
				"%s: parse %s: %w",
				errCtx, yamlFile, err,
			)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return s, nil
}

// LoadNearest walks up from dir and loads settings from the
// nearest ancestor carrying either settings file, so defaults
// are found when invoked from a checkout subdirectory. No
// file anywhere yields zero settings.
func LoadNearest(dir string) (*Settings, error) {
	const errCtx = "locating try server settings"

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	for cur := abs; ; {
		for _, name := range []string{
			legacyFile, yamlFile,
		} {
			_, err := os.Stat(
				filepath.Join(cur, name),
			)
			if err == nil {
				return Load(cur)
			}
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return &Settings{}, nil
		}

		cur = parent
	}
}

// applyLegacy folds "KEY: value" lines into the settings.
// Unknown keys and malformed lines are ignored.
func (s *Settings) applyLegacy(content string) {
	for _, line := range strings.Split(content, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		if val == "" {
			continue
		}

		switch key {
		case "TRYSERVER_HTTP_HOST":
			s.HTTPHost = val
		case "TRYSERVER_HTTP_PORT":
			s.HTTPPort = val
		case "TRYSERVER_SVN_URL":
			s.SVNRepo = val
		case "TRYSERVER_PROJECT":
			s.Project = val
		case "TRYSERVER_ROOT":
			s.Root = val
		case "TRYSERVER_PATCHLEVEL":
			if n, err := strconv.Atoi(val); err == nil {
				s.PatchLevel = n
			}
		}
	}
}
