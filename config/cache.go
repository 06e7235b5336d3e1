package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/logging"
)

// EnvConfDir names the environment variable holding the secondary search directory. Its
// value may itself reference other environment variables, e.g. "$HOME/cameras".
const EnvConfDir = "IIDC_CONF"

// FileExtension is appended to a camera identifier to form a config filename.
const FileExtension = ".conf"

// Cache loads a camera's hardware configuration once and serves it thereafter. It is owned
// by one camera and is read-only after it has been populated.
type Cache struct {
	logger logging.Logger
	// migration receives the synthesized config when no file is found.
	migration io.Writer
	// useGenerated serves the synthesized config when no file is found.
	useGenerated bool
	workDir      string

	conf HardwareConfig
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithMigrationOutput sets where a synthesized config and its suggested filenames are
// printed. It defaults to stdout.
func WithMigrationOutput(w io.Writer) CacheOption {
	return func(c *Cache) {
		c.migration = w
	}
}

// UseGenerated makes Get return and cache the synthesized config when no config file
// exists, instead of failing with ErrUnavailable.
func UseGenerated() CacheOption {
	return func(c *Cache) {
		c.useGenerated = true
	}
}

// WithWorkDir overrides the first search directory, which is otherwise the working directory.
func WithWorkDir(dir string) CacheOption {
	return func(c *Cache) {
		c.workDir = dir
	}
}

// NewCache returns an empty cache.
func NewCache(logger logging.Logger, opts ...CacheOption) *Cache {
	c := &Cache{logger: logger, migration: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loaded reports whether the cache holds a config.
func (c *Cache) Loaded() bool {
	return c.conf.Loaded()
}

// Get returns the cached config, loading it on first use. Lookup tries, in order,
// "<chip>.conf", "<model>.conf" and "<vendor>.conf" in the working directory and then in
// the directory named by IIDC_CONF. If no file is found a best guess is synthesized from
// the camera's capability registers and printed in file format as a starting point, and
// Get fails with ErrUnavailable unless the cache was built with UseGenerated.
func (c *Cache) Get(ctx context.Context, driver dcam.Driver) (HardwareConfig, error) {
	if c.conf.Loaded() {
		return c.conf, nil
	}

	id, err := driver.Identity(ctx)
	if err != nil {
		return HardwareConfig{}, errors.Wrap(err, "identifying camera")
	}

	path, found, err := c.find(id)
	if err != nil {
		return HardwareConfig{}, err
	}
	if found {
		conf, err := ReadFile(path)
		if err != nil {
			return HardwareConfig{}, err
		}
		c.logger.Debugw("loaded hardware configuration", "path", path)
		c.conf = conf
		return conf, nil
	}

	c.logger.Warnw("no hardware configuration file found, generating a default", "chip", id.Chip())
	conf, err := Generate(ctx, driver)
	if err != nil {
		return HardwareConfig{}, errors.Wrapf(ErrUnavailable, "generating default configuration: %v", err)
	}
	if err := c.printMigration(id, conf); err != nil {
		c.logger.Warnw("could not print generated configuration", "error", err)
	}
	if !c.useGenerated {
		return HardwareConfig{}, errors.Wrapf(ErrUnavailable, "no configuration file for camera %s", id.Chip())
	}
	c.conf = conf
	return conf, nil
}

// Candidates returns the config filenames for a camera in lookup order.
func Candidates(id dcam.Identity) []string {
	return []string{
		id.Chip() + FileExtension,
		id.Model + FileExtension,
		id.Vendor + FileExtension,
	}
}

func (c *Cache) searchDirs() ([]string, error) {
	dirs := []string{c.workDir}
	envDir := os.Getenv(EnvConfDir)
	if envDir == "" {
		return dirs, nil
	}
	expanded, err := envsubst.String(envDir)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding %s", EnvConfDir)
	}
	return append(dirs, expanded), nil
}

func (c *Cache) find(id dcam.Identity) (string, bool, error) {
	dirs, err := c.searchDirs()
	if err != nil {
		return "", false, err
	}
	for _, dir := range dirs {
		for _, name := range Candidates(id) {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err == nil && !info.IsDir() {
				return path, true, nil
			}
			if err != nil && !os.IsNotExist(err) {
				return "", false, errors.Wrapf(err, "checking %q", path)
			}
		}
	}
	return "", false, nil
}

func (c *Cache) printMigration(id dcam.Identity, conf HardwareConfig) error {
	var buf bytes.Buffer
	const rule = "----------------------------------------------------------------"
	fmt.Fprintf(&buf, "\n%s\n", rule)
	if err := Write(&buf, conf); err != nil {
		return err
	}
	names := Candidates(id)
	fmt.Fprintf(&buf, "%s\n\n", rule)
	fmt.Fprintf(&buf, "This is a best guess of the camera's hardware configuration.\n")
	fmt.Fprintf(&buf, "To keep it, copy the text between the rules into one of these files:\n")
	fmt.Fprintf(&buf, "  %s\t(chip)\n  %s\t(model)\n  %s\t(vendor)\n", names[0], names[1], names[2])
	fmt.Fprintf(&buf, "Files are looked for in this order in the working directory, then in $%s.\n\n", EnvConfDir)
	_, err := c.migration.Write(buf.Bytes())
	return err
}

// ReadFile reads and validates a config file. Environment variables in the file are expanded.
func ReadFile(path string) (HardwareConfig, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return HardwareConfig{}, errors.Wrapf(err, "reading %q", path)
	}
	conf, err := Read(bytes.NewReader(buf))
	if err != nil {
		return HardwareConfig{}, errors.Wrapf(err, "in %q", path)
	}
	if _, err := conf.Validate(path); err != nil {
		return HardwareConfig{}, err
	}
	return conf, nil
}
