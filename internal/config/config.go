package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/tally/internal/constants"
)

var (
	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("base URL must be an absolute http or https URL")
	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

// Config holds the client settings. Fields are filled from flags or TALLY_* env vars.
type Config struct {
	BaseURL   string        `help:"API base URL." env:"TALLY_BASE_URL" default:"${base_url}" name:"base-url"`
	Timeout   time.Duration `help:"Per-request timeout." env:"TALLY_TIMEOUT" default:"${timeout}"`
	Debug     bool          `help:"Enable debug logging to stderr." env:"TALLY_DEBUG"`
	ConfigDir string        `help:"Directory for logs." env:"TALLY_CONFIG_DIR" default:"${config_dir}" name:"config-dir"`
}

// Vars supplies the defaults interpolated into the Config tags.
func Vars() kong.Vars {
	return kong.Vars{
		"base_url":   constants.DefaultBaseURL,
		"timeout":    constants.DefaultTimeout.String(),
		"config_dir": constants.DefaultConfigDir,
	}
}

// Validate normalizes the config in place and reports the first problem.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	dir, err := ExpandHome(c.ConfigDir)
	if err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	c.ConfigDir = dir
	return nil
}

// HTTPClient returns the client every request is sent with.
func (c Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
