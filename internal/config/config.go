package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/cloudblocks/internal/palette"
	"github.com/banshee-data/cloudblocks/internal/voxel"
)

// DefaultConfigPath is the path to the example configuration shipped with
// the repository.
const DefaultConfigPath = "config/cloudblocks.example.yaml"

// Environment variables that override the file.
const (
	EnvPassword = "RCON_PASSWORD"
	EnvHost     = "RCON_HOST"
	EnvPort     = "RCON_PORT"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the run configuration. Every field is optional; the Get*
// methods supply defaults for fields left unset, so partial files are safe.
type Config struct {
	SourcePath *string `json:"source_path,omitempty" yaml:"source_path,omitempty"`

	// Voxel params
	SplitRange         *float64    `json:"split_range,omitempty" yaml:"split_range,omitempty"`
	ExistenceThreshold *int        `json:"existence_threshold,omitempty" yaml:"existence_threshold,omitempty"`
	GeneratePosition   *[3]float64 `json:"generate_position,omitempty" yaml:"generate_position,omitempty"`
	DecimationRate     *int        `json:"decimation_rate,omitempty" yaml:"decimation_rate,omitempty"` // accepted, unused by placement
	MatchSpace         *string     `json:"match_space,omitempty" yaml:"match_space,omitempty"`
	Workers            *int        `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Remote console params
	RCONHost        *string `json:"rcon_host,omitempty" yaml:"rcon_host,omitempty"`
	RCONPort        *int    `json:"rcon_port,omitempty" yaml:"rcon_port,omitempty"`
	RCONPassword    *string `json:"rcon_password,omitempty" yaml:"rcon_password,omitempty"`
	DialTimeout     *string `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty"`         // duration string like "5s"
	CommandInterval *string `json:"command_interval,omitempty" yaml:"command_interval,omitempty"` // duration string like "10ms"

	// Outputs
	JournalPath *string `json:"journal_path,omitempty" yaml:"journal_path,omitempty"`
	ReportDir   *string `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
	PalettePath *string `json:"palette_path,omitempty" yaml:"palette_path,omitempty"`
}

// Ptr returns a pointer to v, for filling Config fields.
func Ptr[T any](v T) *T { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from envFile into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// ApplyEnv overrides the console host, port and password from the
// environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPassword); ok {
		c.RCONPassword = Ptr(v)
	}
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.RCONHost = Ptr(v)
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.RCONPort = Ptr(port)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.SplitRange != nil {
		v := *c.SplitRange
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: split_range must be positive, got %v", voxel.ErrInvalidConfiguration, v)
		}
	}
	if c.ExistenceThreshold != nil && *c.ExistenceThreshold < 0 {
		return fmt.Errorf("existence_threshold must be non-negative, got %d", *c.ExistenceThreshold)
	}
	if c.DecimationRate != nil && *c.DecimationRate < 1 {
		return fmt.Errorf("decimation_rate must be at least 1, got %d", *c.DecimationRate)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.RCONPort != nil && (*c.RCONPort < 1 || *c.RCONPort > 65535) {
		return fmt.Errorf("rcon_port must be between 1 and 65535, got %d", *c.RCONPort)
	}
	if c.MatchSpace != nil {
		if _, err := palette.ParseMatchSpace(*c.MatchSpace); err != nil {
			return fmt.Errorf("invalid match_space: %w", err)
		}
	}
	for name, d := range map[string]*string{"dial_timeout": c.DialTimeout, "command_interval": c.CommandInterval} {
		if d == nil || *d == "" {
			continue
		}
		v, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, v)
		}
	}
	return nil
}

// GetSourcePath returns the source_path value or "".
func (c *Config) GetSourcePath() string {
	if c.SourcePath == nil {
		return ""
	}
	return *c.SourcePath
}

// GetSplitRange returns the voxel edge length.
func (c *Config) GetSplitRange() float64 {
	if c.SplitRange == nil {
		return 5
	}
	return *c.SplitRange
}

// GetExistenceThreshold returns the point count a voxel must exceed.
func (c *Config) GetExistenceThreshold() int {
	if c.ExistenceThreshold == nil {
		return 700
	}
	return *c.ExistenceThreshold
}

// GetGeneratePosition returns the world origin of grid cell (0,0,0).
func (c *Config) GetGeneratePosition() [3]float64 {
	if c.GeneratePosition == nil {
		return [3]float64{0, -60, 0}
	}
	return *c.GeneratePosition
}

// GetDecimationRate returns the decimation_rate value or the default.
func (c *Config) GetDecimationRate() int {
	if c.DecimationRate == nil {
		return 5
	}
	return *c.DecimationRate
}

// GetMatchSpace returns the color space used for block matching.
func (c *Config) GetMatchSpace() palette.MatchSpace {
	if c.MatchSpace == nil {
		return palette.MatchLab
	}
	m, err := palette.ParseMatchSpace(*c.MatchSpace)
	if err != nil {
		return palette.MatchLab // default on parse error
	}
	return m
}

// GetWorkers returns the worker count, defaulting to GOMAXPROCS.
func (c *Config) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetRCONHost returns the rcon_host value or the default.
func (c *Config) GetRCONHost() string {
	if c.RCONHost == nil || *c.RCONHost == "" {
		return "127.0.0.1"
	}
	return *c.RCONHost
}

// GetRCONPort returns the rcon_port value or the default.
func (c *Config) GetRCONPort() int {
	if c.RCONPort == nil {
		return 25575
	}
	return *c.RCONPort
}

// GetRCONPassword returns the rcon_password value or "".
func (c *Config) GetRCONPassword() string {
	if c.RCONPassword == nil {
		return ""
	}
	return *c.RCONPassword
}

// RCONAddr joins host and port.
func (c *Config) RCONAddr() string {
	return net.JoinHostPort(c.GetRCONHost(), strconv.Itoa(c.GetRCONPort()))
}

// GetDialTimeout parses and returns the DialTimeout as a time.Duration.
func (c *Config) GetDialTimeout() time.Duration {
	if c.DialTimeout == nil || *c.DialTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.DialTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetCommandInterval parses and returns the pause between commands.
func (c *Config) GetCommandInterval() time.Duration {
	if c.CommandInterval == nil || *c.CommandInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.CommandInterval)
	if err != nil {
		return 0
	}
	return d
}

// GetJournalPath returns the journal_path value; "" disables the journal.
func (c *Config) GetJournalPath() string {
	if c.JournalPath == nil {
		return ""
	}
	return *c.JournalPath
}

// GetReportDir returns the report_dir value; "" disables reports.
func (c *Config) GetReportDir() string {
	if c.ReportDir == nil {
		return ""
	}
	return *c.ReportDir
}

// GetPalettePath returns the palette_path value; "" selects the built-in palette.
func (c *Config) GetPalettePath() string {
	if c.PalettePath == nil {
		return ""
	}
	return *c.PalettePath
}
