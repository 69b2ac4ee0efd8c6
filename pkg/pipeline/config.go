package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config manages pipeline configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Run parameters, normally taken from the command line
	v.SetDefault("run.algorithm", "modularity")
	v.SetDefault("run.dataset", "")
	v.SetDefault("run.param", 1.0)
	v.SetDefault("run.iterations", 1)

	v.SetDefault("paths.input_dir", ".")
	v.SetDefault("paths.output_dir", ".")

	// Level graph construction
	v.SetDefault("graph.threshold", 0.01)
	v.SetDefault("graph.rescale", "sum")
	v.SetDefault("graph.log_transform", false)
	v.SetDefault("graph.self_weight", 1.0)

	// Optimizer parameters
	v.SetDefault("lpa.min_modularity_gain", 0.0001)
	v.SetDefault("lpa.max_sweeps", 0)
	v.SetDefault("lpa.track_moves", false)

	// Export parameters
	v.SetDefault("export.dot", true)
	v.SetDefault("export.layout", false)
	v.SetDefault("export.damping", 0.85)
	v.SetDefault("export.tolerance", 1e-6)
	v.SetDefault("export.max_distance", 10.0)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

func (c *Config) Algorithm() string { return c.v.GetString("run.algorithm") }
func (c *Config) Dataset() string   { return c.v.GetString("run.dataset") }
func (c *Config) Param() float64    { return c.v.GetFloat64("run.param") }
func (c *Config) Iterations() int   { return c.v.GetInt("run.iterations") }

func (c *Config) LogLevel() string     { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Options is the resolved, validated view of a Config
type Options struct {
	Algorithm  string  `yaml:"algorithm" validate:"required"`
	Dataset    string  `yaml:"dataset" validate:"required"`
	Param      float64 `yaml:"param" validate:"gte=0"`
	Iterations int     `yaml:"iterations" validate:"gte=0"`

	InputDir  string `yaml:"input_dir" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`

	Threshold    float64 `yaml:"threshold" validate:"gte=0"`
	Rescale      string  `yaml:"rescale" validate:"oneof=sum minmax none"`
	LogTransform bool    `yaml:"log_transform"`
	SelfWeight   float64 `yaml:"self_weight" validate:"gt=0"`

	MinModularityGain float64 `yaml:"min_modularity_gain" validate:"gte=0"`
	MaxSweeps         int     `yaml:"max_sweeps" validate:"gte=0"`
	TrackMoves        bool    `yaml:"track_moves"`

	ExportDOT    bool    `yaml:"export_dot"`
	ExportLayout bool    `yaml:"export_layout"`
	Damping      float64 `yaml:"damping" validate:"gt=0,lt=1"`
	Tolerance    float64 `yaml:"tolerance" validate:"gt=0"`
	MaxDistance  float64 `yaml:"max_distance" validate:"gt=0"`

	LogLevel       string `yaml:"log_level"`
	EnableProgress bool   `yaml:"enable_progress"`
}

// Options resolves and validates the configuration.
func (c *Config) Options() (*Options, error) {
	opts := &Options{
		Algorithm:  c.Algorithm(),
		Dataset:    c.Dataset(),
		Param:      c.Param(),
		Iterations: c.Iterations(),

		InputDir:  c.v.GetString("paths.input_dir"),
		OutputDir: c.v.GetString("paths.output_dir"),

		Threshold:    c.v.GetFloat64("graph.threshold"),
		Rescale:      c.v.GetString("graph.rescale"),
		LogTransform: c.v.GetBool("graph.log_transform"),
		SelfWeight:   c.v.GetFloat64("graph.self_weight"),

		MinModularityGain: c.v.GetFloat64("lpa.min_modularity_gain"),
		MaxSweeps:         c.v.GetInt("lpa.max_sweeps"),
		TrackMoves:        c.v.GetBool("lpa.track_moves"),

		ExportDOT:    c.v.GetBool("export.dot"),
		ExportLayout: c.v.GetBool("export.layout"),
		Damping:      c.v.GetFloat64("export.damping"),
		Tolerance:    c.v.GetFloat64("export.tolerance"),
		MaxDistance:  c.v.GetFloat64("export.max_distance"),

		LogLevel:       c.LogLevel(),
		EnableProgress: c.EnableProgress(),
	}

	if err := validate.Struct(opts); err != nil {
		return nil, formatValidationError(err)
	}
	return opts, nil
}

// formatValidationError reports the first failing field
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	e := validationErrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("invalid configuration: %s is required", e.Field())
	case "oneof":
		return fmt.Errorf("invalid configuration: %s must be one of [%s], got %v", e.Field(), e.Param(), e.Value())
	default:
		return fmt.Errorf("invalid configuration: %s must satisfy %s=%s, got %v", e.Field(), e.Tag(), e.Param(), e.Value())
	}
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "pipeline").Logger()
}
