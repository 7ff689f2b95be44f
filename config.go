package replica

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of an Engine.
type Config struct {
	// Application names this instance on every event it produces.
	Application string `yaml:"application" env:"REPLICA_APPLICATION"`

	// Source identifies the decorated connection on invocations and events.
	Source string `yaml:"source" env:"REPLICA_SOURCE"`

	// Enabled is the initial state of the capture toggle.
	Enabled bool `yaml:"enabled" env:"REPLICA_ENABLED"`

	// FailFast makes registration errors abort Engine.Register.
	FailFast bool `yaml:"fail_fast" env:"REPLICA_FAIL_FAST"`

	// Tracing adds the OpenTelemetry interceptor.
	Tracing bool `yaml:"tracing" env:"REPLICA_TRACING"`

	Codec    CodecConfig    `yaml:"codec"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Describe DescribeConfig `yaml:"describe"`
}

// CodecConfig selects the wire encoding.
type CodecConfig struct {
	// Format is "compact" or "default".
	Format string `yaml:"format" env:"REPLICA_CODEC_FORMAT"`

	// Compression is "none", "lz4" or "zstd". Applies to the compact format.
	Compression string `yaml:"compression" env:"REPLICA_CODEC_COMPRESSION"`

	// CompressionThreshold is the smallest body, in bytes, worth compressing.
	CompressionThreshold int `yaml:"compression_threshold" env:"REPLICA_CODEC_COMPRESSION_THRESHOLD"`

	// MaxEventSize bounds decompressed events on receipt.
	MaxEventSize int `yaml:"max_event_size" env:"REPLICA_CODEC_MAX_EVENT_SIZE"`

	Seal SealConfig `yaml:"seal"`
}

// SealConfig enables sealed frames when Algorithm is set.
type SealConfig struct {
	// Algorithm is "", "aes-gcm" or "xchacha20-poly1305".
	Algorithm string `yaml:"algorithm" env:"REPLICA_SEAL_ALGORITHM"`

	// Key is hex or standard base64.
	Key string `yaml:"key" env:"REPLICA_SEAL_KEY"`
}

// ReceiverConfig sets the identity recorded on replayed events.
type ReceiverConfig struct {
	Domain       string `yaml:"domain" env:"REPLICA_RECEIVER_DOMAIN"`
	ConnectionID string `yaml:"connection_id" env:"REPLICA_RECEIVER_CONNECTION_ID"`
}

// DescribeConfig controls masking in event descriptions.
type DescribeConfig struct {
	// Mask is a MaskType name.
	Mask string `yaml:"mask" env:"REPLICA_DESCRIBE_MASK"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Enabled: true,
		Codec: CodecConfig{
			Format:               string(FormatCompact),
			Compression:          CompressionNone.String(),
			CompressionThreshold: 1024,
			MaxEventSize:         DefaultMaxEventSize,
		},
		Describe: DescribeConfig{
			Mask: string(MaskTail),
		},
	}
}

// Load reads the file named by REPLICA_CONFIG, if set, over the defaults and
// then applies REPLICA_* environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("REPLICA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults and then applies REPLICA_*
// environment overrides. Environment values win over the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// ParseEnv applies environment overrides to target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseFormat(c.Codec.Format); err != nil {
		errs = append(errs, fmt.Errorf("codec.format: %w", err))
	}
	if _, err := ParseCompressionTag(c.Codec.Compression); err != nil {
		errs = append(errs, fmt.Errorf("codec.compression: %w", err))
	}
	if c.Codec.CompressionThreshold < 0 {
		errs = append(errs, fmt.Errorf("codec.compression_threshold must not be negative"))
	}
	if c.Codec.MaxEventSize <= 0 {
		errs = append(errs, fmt.Errorf("codec.max_event_size must be positive"))
	}
	if c.Codec.Seal.Algorithm != "" {
		if _, err := c.Sealer(); err != nil {
			errs = append(errs, fmt.Errorf("codec.seal: %w", err))
		}
	}
	if _, err := MaskerFor(MaskType(c.Describe.Mask)); err != nil {
		errs = append(errs, fmt.Errorf("describe.mask: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Sealer builds the configured sealer, or nil when sealing is off.
func (c *Config) Sealer() (Sealer, error) {
	if c.Codec.Seal.Algorithm == "" {
		return nil, nil
	}
	alg, err := ParseSealAlgorithm(c.Codec.Seal.Algorithm)
	if err != nil {
		return nil, err
	}
	key, err := decodeKey(c.Codec.Seal.Key)
	if err != nil {
		return nil, err
	}
	return NewSealer(alg, key)
}

// EventCodec builds the codec described by the configuration.
func (c *Config) EventCodec(extra ...CodecOption) (*EventCodec, error) {
	format, err := ParseFormat(c.Codec.Format)
	if err != nil {
		return nil, err
	}
	tag, err := ParseCompressionTag(c.Codec.Compression)
	if err != nil {
		return nil, err
	}
	opts := []CodecOption{
		WithFormat(format),
		WithCompression(tag, c.Codec.CompressionThreshold),
	}
	if c.Codec.MaxEventSize > 0 {
		opts = append(opts, WithMaxEventSize(c.Codec.MaxEventSize))
	}
	sealer, err := c.Sealer()
	if err != nil {
		return nil, err
	}
	if sealer != nil {
		opts = append(opts, WithSealer(sealer))
	}
	return NewEventCodec(append(opts, extra...)...), nil
}

// decodeKey accepts hex first, then standard base64.
func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if key, err := hex.DecodeString(s); err == nil {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: key is neither hex nor base64", ErrInvalidKey)
}
