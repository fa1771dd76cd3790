package contract

import (
	"fmt"
	"io"
	"os"
)

// Option is a function that configures a parse operation
type Option func(*parseConfig) error

// parseConfig holds configuration for a parse operation
type parseConfig struct {
	// Input source (exactly one must be set)
	filePath *string
	reader   io.Reader
	bytes    []byte

	logger Logger

	// Source identification
	sourceName *string
}

// ParseWithOptions loads a contract document using functional options.
//
// Example:
//
//	doc, err := contract.ParseWithOptions(
//	    contract.WithFilePath("openapi.yaml"),
//	    contract.WithLogger(logger),
//	)
func ParseWithOptions(opts ...Option) (*Document, error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("contract: invalid options: %w", err)
	}

	var data []byte
	source := "ParseBytes"
	switch {
	case cfg.filePath != nil:
		source = *cfg.filePath
		data, err = os.ReadFile(*cfg.filePath)
		if err != nil {
			return nil, fmt.Errorf("contract: failed to read file: %w", err)
		}
	case cfg.reader != nil:
		source = "ParseReader"
		data, err = io.ReadAll(cfg.reader)
		if err != nil {
			return nil, fmt.Errorf("contract: failed to read data: %w", err)
		}
	default:
		data = cfg.bytes
	}

	if cfg.sourceName != nil {
		source = *cfg.sourceName
	}

	l := &loader{
		source: source,
		logger: LoggerOrNop(cfg.logger).With("source", source),
	}
	return l.load(data)
}

// applyOptions applies option functions and validates configuration
func applyOptions(opts ...Option) (*parseConfig, error) {
	cfg := &parseConfig{}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	sources := 0
	for _, set := range []bool{cfg.filePath != nil, cfg.reader != nil, cfg.bytes != nil} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return nil, fmt.Errorf("contract: must specify an input source (use WithFilePath, WithReader, or WithBytes)")
	case sources > 1:
		return nil, fmt.Errorf("contract: must specify exactly one input source")
	}

	return cfg, nil
}

// WithFilePath specifies a file path as the input source
func WithFilePath(path string) Option {
	return func(cfg *parseConfig) error {
		cfg.filePath = &path
		return nil
	}
}

// WithReader specifies an io.Reader as the input source
func WithReader(r io.Reader) Option {
	return func(cfg *parseConfig) error {
		if r == nil {
			return fmt.Errorf("contract: reader cannot be nil")
		}
		cfg.reader = r
		return nil
	}
}

// WithBytes specifies a byte slice as the input source
func WithBytes(data []byte) Option {
	return func(cfg *parseConfig) error {
		if data == nil {
			return fmt.Errorf("contract: bytes cannot be nil")
		}
		cfg.bytes = data
		return nil
	}
}

// WithSourceName overrides the source name recorded on the document and used
// in error messages.
func WithSourceName(name string) Option {
	return func(cfg *parseConfig) error {
		cfg.sourceName = &name
		return nil
	}
}

// WithLogger sets the logger used while loading.
// Default: NopLogger
func WithLogger(l Logger) Option {
	return func(cfg *parseConfig) error {
		cfg.logger = l
		return nil
	}
}
