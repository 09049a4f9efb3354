// Package config loads and validates the davsync configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davsync/davsync/internal/utils"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigInvalid  = errors.New("invalid config")
)

var (
	home, _          = os.UserHomeDir()
	DefaultStorePath = filepath.Join(home, ".davsync", "fingerprints.yaml")
	DefaultLogPath   = filepath.Join(home, ".davsync", "logs", "davsync.log")
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConcurrency = 4
)

// SyncRoot pairs a local folder tree with its remote base collection.
type SyncRoot struct {
	Local  string `mapstructure:"local"`
	Remote string `mapstructure:"remote"`
}

// ID identifies the root inside the fingerprint store. Records are namespaced
// by the remote base so two roots never collide on relative paths.
func (r SyncRoot) ID() string {
	return utils.NormPath(r.Remote)
}

type Config struct {
	WebDAVURL       string        `mapstructure:"webdav_url"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Roots           []SyncRoot    `mapstructure:"roots"`
	StorePath       string        `mapstructure:"store_path"`
	RemoteStorePath string        `mapstructure:"remote_store_path"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	VerifyRemote    bool          `mapstructure:"verify_remote"`
	Ignore          []string      `mapstructure:"ignore"`

	// Path of the loaded config file, set by Load.
	Path string `mapstructure:"-"`
}

// Validate checks the configuration and normalizes paths in place. Local
// roots are resolved to clean absolute paths.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WebDAVURL) == "" {
		return fmt.Errorf("%w: webdav_url cannot be empty", ErrConfigInvalid)
	}
	u, err := url.Parse(c.WebDAVURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: webdav_url %q is not a valid URL", ErrConfigInvalid, c.WebDAVURL)
	}

	if len(c.Roots) == 0 {
		return fmt.Errorf("%w: roots cannot be empty", ErrConfigInvalid)
	}

	for i := range c.Roots {
		if strings.TrimSpace(c.Roots[i].Local) == "" {
			return fmt.Errorf("%w: roots[%d].local cannot be empty", ErrConfigInvalid, i)
		}
		resolved, err := utils.ResolvePath(c.Roots[i].Local)
		if err != nil {
			return fmt.Errorf("%w: roots[%d].local: %v", ErrConfigInvalid, i, err)
		}
		c.Roots[i].Local = resolved
		c.Roots[i].Remote = utils.NormPath(c.Roots[i].Remote)
	}

	if err := c.checkOverlap(); err != nil {
		return err
	}

	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	resolved, err := utils.ResolvePath(c.StorePath)
	if err != nil {
		return fmt.Errorf("%w: store_path: %v", ErrConfigInvalid, err)
	}
	c.StorePath = resolved

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}

	return nil
}

// checkOverlap rejects local roots that nest inside each other and remote
// bases that collide. Overlapping roots would fight over the same store keys.
func (c *Config) checkOverlap() error {
	for i := range c.Roots {
		for j := range c.Roots {
			if i == j {
				continue
			}
			if isPathPrefix(c.Roots[i].Local, c.Roots[j].Local) {
				return fmt.Errorf("%w: local roots %q and %q overlap",
					ErrConfigInvalid, c.Roots[i].Local, c.Roots[j].Local)
			}
			if c.Roots[i].ID() == c.Roots[j].ID() {
				return fmt.Errorf("%w: duplicate remote base %q",
					ErrConfigInvalid, c.Roots[i].Remote)
			}
		}
	}
	return nil
}

func isPathPrefix(parent, child string) bool {
	if parent == child {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
