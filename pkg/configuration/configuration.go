package configuration

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fitsight-io/fitsight/pkg/encoding"
)

// ServerConfiguration encodes the HTTP server settings.
type ServerConfiguration struct {
	// Port is the port to bind to.
	Port uint16 `toml:"port"`
	// Host is the host to bind to.
	Host string `toml:"host"`
	// CORS indicates whether or not permissive CORS headers should be
	// emitted.
	CORS bool `toml:"cors"`
}

// DatabaseConfiguration encodes the acquisition catalog settings.
type DatabaseConfiguration struct {
	// Path is the path to the SQLite catalog written by the capture tool.
	Path string `toml:"path"`
}

// ImagesConfiguration encodes the image root settings.
type ImagesConfiguration struct {
	// Directories are the image root directories to scan, in priority order.
	Directories []string `toml:"directories"`
	// Exclude are additional directory basename glob patterns to skip when
	// scanning, on top of the built-in calibration and tooling exclusions.
	Exclude []string `toml:"exclude"`
}

// CacheConfiguration encodes the artifact and lookup cache settings.
type CacheConfiguration struct {
	// Directory is the artifact cache root.
	Directory string `toml:"directory"`
	// FileTTL is the file-existence cache time-to-live, expressed as a
	// duration string such as "5m" or "2h30m".
	FileTTL string `toml:"file_ttl"`
	// DirectoryTTL is the directory-tree cache time-to-live, expressed as a
	// duration string.
	DirectoryTTL string `toml:"directory_ttl"`
}

// PregenerationConfiguration encodes the background artifact pre-generation
// settings.
type PregenerationConfiguration struct {
	// Enabled indicates whether or not pre-generation runs at all.
	Enabled bool `toml:"enabled"`
	// Screen indicates whether or not screen-sized previews are
	// pre-generated.
	Screen bool `toml:"screen"`
	// Large indicates whether or not large previews are pre-generated.
	Large bool `toml:"large"`
	// Original indicates whether or not full-resolution previews are
	// pre-generated.
	Original bool `toml:"original"`
	// Annotated indicates whether or not annotated images are pre-generated.
	Annotated bool `toml:"annotated"`
	// CacheExpiry is the age beyond which pre-generated artifacts are
	// regenerated, expressed as a duration string.
	CacheExpiry string `toml:"cache_expiry"`
}

// Configuration is the top-level Fitsight configuration.
type Configuration struct {
	// Server is the HTTP server configuration.
	Server ServerConfiguration `toml:"server"`
	// Database is the catalog configuration.
	Database DatabaseConfiguration `toml:"database"`
	// Images is the image root configuration.
	Images ImagesConfiguration `toml:"images"`
	// Cache is the cache configuration.
	Cache CacheConfiguration `toml:"cache"`
	// Pregeneration is the artifact pre-generation configuration.
	Pregeneration PregenerationConfiguration `toml:"pregeneration"`
}

// Default returns a configuration with default values, equivalent to what an
// empty configuration file would yield.
func Default() *Configuration {
	return &Configuration{
		Server: ServerConfiguration{
			Port: 3000,
			Host: "0.0.0.0",
			CORS: true,
		},
		Database: DatabaseConfiguration{
			Path: "schedulerdb.sqlite",
		},
		Images: ImagesConfiguration{
			Directories: []string{"./images"},
		},
		Cache: CacheConfiguration{
			Directory:    "./cache",
			FileTTL:      "5m",
			DirectoryTTL: "5m",
		},
		Pregeneration: PregenerationConfiguration{
			Enabled:     false,
			Screen:      true,
			CacheExpiry: "24h",
		},
	}
}

// Load attempts to load a TOML-based Fitsight configuration file from the
// specified path. Keys absent from the file retain their default values. It
// passes through os.IsNotExist errors from the underlying loading.
func Load(path string) (*Configuration, error) {
	// Start from defaults so that absent keys keep their default values.
	result := Default()

	// Attempt to load.
	if err := encoding.LoadAndUnmarshalTOML(path, result); err != nil {
		return nil, err
	}

	// Success.
	return result, nil
}

// Save writes the configuration to the specified path atomically. Saving and
// reloading a configuration is a fixed point.
func (c *Configuration) Save(path string) error {
	return encoding.MarshalAndSaveTOML(path, c)
}

// Overrides encodes optional command line overrides for a configuration.
// Zero values indicate that no override was specified.
type Overrides struct {
	// DatabasePath overrides the catalog path.
	DatabasePath string
	// ImageDirectories overrides the image roots.
	ImageDirectories []string
	// Port overrides the server port.
	Port uint16
	// Host overrides the server host.
	Host string
	// CacheDirectory overrides the artifact cache root.
	CacheDirectory string
}

// Apply merges command line overrides into the configuration, with override
// values taking priority.
func (c *Configuration) Apply(overrides *Overrides) {
	if overrides == nil {
		return
	}
	if overrides.DatabasePath != "" {
		c.Database.Path = overrides.DatabasePath
	}
	if len(overrides.ImageDirectories) > 0 {
		c.Images.Directories = overrides.ImageDirectories
	}
	if overrides.Port != 0 {
		c.Server.Port = overrides.Port
	}
	if overrides.Host != "" {
		c.Server.Host = overrides.Host
	}
	if overrides.CacheDirectory != "" {
		c.Cache.Directory = overrides.CacheDirectory
	}
}

// FileTTL returns the parsed file-existence cache time-to-live, falling back
// to five minutes if the configured value is empty or malformed.
func (c *Configuration) FileTTL() time.Duration {
	if ttl, err := time.ParseDuration(c.Cache.FileTTL); err == nil && ttl > 0 {
		return ttl
	}
	return 5 * time.Minute
}

// DirectoryTTL returns the parsed directory-tree cache time-to-live, falling
// back to five minutes if the configured value is empty or malformed.
func (c *Configuration) DirectoryTTL() time.Duration {
	if ttl, err := time.ParseDuration(c.Cache.DirectoryTTL); err == nil && ttl > 0 {
		return ttl
	}
	return 5 * time.Minute
}

// CacheExpiry returns the parsed pre-generation cache expiry, falling back to
// 24 hours if the configured value is empty or malformed.
func (c *Configuration) CacheExpiry() time.Duration {
	if expiry, err := time.ParseDuration(c.Pregeneration.CacheExpiry); err == nil && expiry > 0 {
		return expiry
	}
	return 24 * time.Hour
}

// EnabledFormats returns the names of the artifact formats enabled for
// pre-generation.
func (p *PregenerationConfiguration) EnabledFormats() []string {
	var formats []string
	if p.Screen {
		formats = append(formats, "screen")
	}
	if p.Large {
		formats = append(formats, "large")
	}
	if p.Original {
		formats = append(formats, "original")
	}
	if p.Annotated {
		formats = append(formats, "annotated")
	}
	return formats
}

// Validate ensures that the configuration is sane and that the catalog and
// image roots it references actually exist.
func (c *Configuration) Validate() error {
	// Verify that the catalog exists.
	if c.Database.Path == "" {
		return errors.New("no database path specified")
	}
	if _, err := os.Stat(c.Database.Path); err != nil {
		return fmt.Errorf("database file does not exist: %s", c.Database.Path)
	}

	// Verify that at least one image root is specified and that every root
	// exists and is a directory.
	if len(c.Images.Directories) == 0 {
		return errors.New("at least one image directory must be specified")
	}
	for _, directory := range c.Images.Directories {
		info, err := os.Stat(directory)
		if err != nil {
			return fmt.Errorf("image directory does not exist: %s", directory)
		} else if !info.IsDir() {
			return fmt.Errorf("image path is not a directory: %s", directory)
		}
	}

	// Verify the port range. The upper bound is enforced by the type.
	if c.Server.Port < 1024 {
		return fmt.Errorf("port must be 1024 or higher, got: %d", c.Server.Port)
	}

	// Verify that any specified TTL strings parse.
	if c.Cache.FileTTL != "" {
		if _, err := time.ParseDuration(c.Cache.FileTTL); err != nil {
			return fmt.Errorf("invalid file_ttl format: %s", c.Cache.FileTTL)
		}
	}
	if c.Cache.DirectoryTTL != "" {
		if _, err := time.ParseDuration(c.Cache.DirectoryTTL); err != nil {
			return fmt.Errorf("invalid directory_ttl format: %s", c.Cache.DirectoryTTL)
		}
	}
	if c.Pregeneration.CacheExpiry != "" {
		if _, err := time.ParseDuration(c.Pregeneration.CacheExpiry); err != nil {
			return fmt.Errorf("invalid cache_expiry format: %s", c.Pregeneration.CacheExpiry)
		}
	}

	// Success.
	return nil
}
