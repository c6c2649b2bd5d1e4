package formstream

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envConfig mirrors the tunable limits as environment variables, so operators
// can adjust them per deployment without a code change.
type envConfig struct {
	UploadDir                string `env:"FORMSTREAM_UPLOAD_DIR"`
	ComputeSHA256            bool   `env:"FORMSTREAM_COMPUTE_SHA256" envDefault:"false"`
	MaxRequestBodyBytes      int64  `env:"FORMSTREAM_MAX_REQUEST_BODY_BYTES" envDefault:"67108864"`
	MaxPartBodyBytes         int64  `env:"FORMSTREAM_MAX_PART_BODY_BYTES" envDefault:"33554432"`
	MaxFieldValueBytes       int64  `env:"FORMSTREAM_MAX_FIELD_VALUE_BYTES" envDefault:"1048576"`
	MaxParts                 int    `env:"FORMSTREAM_MAX_PARTS" envDefault:"128"`
	MaxNestingDepth          int    `env:"FORMSTREAM_MAX_NESTING_DEPTH" envDefault:"1"`
	EnablePartDecompression  bool   `env:"FORMSTREAM_PART_DECOMPRESSION" envDefault:"false"`
	MaxDecompressedBytes     int64  `env:"FORMSTREAM_MAX_DECOMPRESSED_BYTES" envDefault:"33554432"`
	RejectUnknownContentType bool   `env:"FORMSTREAM_REJECT_UNKNOWN_CONTENT_TYPE" envDefault:"false"`
}

var loadDotEnv sync.Once

// OptionsFromEnv builds FormOptions from FORMSTREAM_* environment variables,
// applying any explicit options on top. A .env file in the working directory
// is honored if present.
//
// Example:
//
//	opts, err := formstream.OptionsFromEnv(
//		formstream.WithRules(rules...),
//	)
func OptionsFromEnv(extra ...Option) (*FormOptions, error) {
	loadDotEnv.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(errors.New("parse formstream environment"), err)
	}

	opts := []Option{
		WithMaxRequestBodyBytes(cfg.MaxRequestBodyBytes),
		WithMaxPartBodyBytes(cfg.MaxPartBodyBytes),
		WithMaxFieldValueBytes(cfg.MaxFieldValueBytes),
		WithMaxParts(cfg.MaxParts),
		WithMaxNestingDepth(cfg.MaxNestingDepth),
	}
	if cfg.UploadDir != "" {
		opts = append(opts, WithUploadDir(cfg.UploadDir))
	}
	if cfg.ComputeSHA256 {
		opts = append(opts, WithSHA256())
	}
	if cfg.EnablePartDecompression {
		opts = append(opts, WithPartDecompression(cfg.MaxDecompressedBytes))
	}
	if cfg.RejectUnknownContentType {
		opts = append(opts, WithRejectUnknownContentType())
	}

	return NewOptions(append(opts, extra...)...)
}
