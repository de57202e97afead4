package config

import (
	"fmt"
	"log/slog"

	"github.com/Brownie44l1/fracture-api/internal/model"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Profile selects the response contract of a deployment.
type Profile string

const (
	// ProfileBackend is the primary deployment; errors are {"error": msg}.
	ProfileBackend Profile = "backend"
	// ProfileSpace is the hosted demo deployment; errors additionally carry
	// fractureType "error" and a zero confidence.
	ProfileSpace Profile = "space"

	minTopK = 3
)

type Config struct {
	Port              int      `env:"PORT" envDefault:"8000"`
	ModelPath         string   `env:"MODEL_PATH" envDefault:"models/model.onnx"`
	ModelFallbackPath string   `env:"MODEL_FALLBACK_PATH"`
	MetadataPath      string   `env:"MODEL_METADATA_PATH"`
	OnnxRuntimeDylib  string   `env:"ONNX_RUNTIME_DYLIB"`
	InputName         string   `env:"MODEL_INPUT_NAME"`
	OutputName        string   `env:"MODEL_OUTPUT_NAME"`
	ImageSize         int      `env:"MODEL_IMAGE_SIZE"`
	ResizeMode        string   `env:"RESIZE_MODE" envDefault:"crop"`
	ApplySoftmax      bool     `env:"APPLY_SOFTMAX" envDefault:"false"`
	TopK              int      `env:"TOP_K" envDefault:"5"`
	DICOMEnabled      bool     `env:"DICOM_ENABLED" envDefault:"true"`
	Profile           Profile  `env:"API_PROFILE" envDefault:"backend"`
	MaxUploadBytes    int64    `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
	AllowedOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads the configuration from the environment, after loading envFile
// into it when one is given.
func Load(envFile string) (Config, error) {
	var cfg Config

	if envFile != "" {
		slog.Info("loading env file", "path", envFile)
		if err := godotenv.Load(envFile); err != nil {
			return cfg, fmt.Errorf("error loading env file '%s': %w", envFile, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.ModelFallbackPath == "" {
		cfg.ModelFallbackPath = model.DefaultFallbackPath()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ImageSize < 0 {
		return fmt.Errorf("MODEL_IMAGE_SIZE must not be negative, got %d", c.ImageSize)
	}
	if c.TopK < minTopK {
		return fmt.Errorf("TOP_K must be at least %d, got %d", minTopK, c.TopK)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if _, err := model.ParseResizeMode(c.ResizeMode); err != nil {
		return fmt.Errorf("invalid RESIZE_MODE: %w", err)
	}
	switch c.Profile {
	case ProfileBackend, ProfileSpace:
	default:
		return fmt.Errorf("invalid API_PROFILE %q, must be %q or %q", c.Profile, ProfileBackend, ProfileSpace)
	}
	return nil
}

// ModelOptions maps the configuration onto classifier loading options.
func (c *Config) ModelOptions() model.Options {
	mode, _ := model.ParseResizeMode(c.ResizeMode)
	return model.Options{
		ModelPath:     c.ModelPath,
		FallbackPath:  c.ModelFallbackPath,
		MetadataPath:  c.MetadataPath,
		SharedLibrary: c.OnnxRuntimeDylib,
		InputName:     c.InputName,
		OutputName:    c.OutputName,
		ImageSize:     c.ImageSize,
		ResizeMode:    mode,
		ApplySoftmax:  c.ApplySoftmax,
		TopK:          c.TopK,
	}
}
