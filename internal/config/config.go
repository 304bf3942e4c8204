package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quillan/bleuwatch/internal/types"
)

// DeriveMinSteps is the sentinel for MinSteps meaning "read the persisted
// cursor at startup".
const DeriveMinSteps = -1

// ErrUsage marks configuration mistakes that should abort before any I/O.
var ErrUsage = errors.New("usage error")

// Config is the immutable run configuration, assembled once at startup from
// flags and an optional YAML file. Components receive it by value and never
// consult global state.
type Config struct {
	// Checkpoint-watch mode.
	ModelDir        string `yaml:"model-dir"`
	SourcePath      string `yaml:"source"`
	ReferencePath   string `yaml:"reference"`
	TranslationsDir string `yaml:"translations-dir"`
	EventsDir       string `yaml:"events-dir"`
	RunMetaName     string `yaml:"run-meta"`
	Translator      string `yaml:"translator"`

	// One-shot mode.
	HypothesisPath string `yaml:"hypothesis"`

	BleuVariant string `yaml:"bleu-variant"`
	MinSteps    int64  `yaml:"min-steps"`
	WaitSeconds int    `yaml:"wait-seconds"`
	TagSuffix   string `yaml:"tag-suffix"`

	// ReportBaseline overrides the default zero-baseline gating. Nil means
	// "default": emit iff the effective min-steps is 0.
	ReportBaseline *bool `yaml:"report-baseline"`

	Influx InfluxConfig `yaml:"influx"`
}

// InfluxConfig holds the optional InfluxDB v2 sink parameters. The sink is
// enabled when URL is non-empty.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether the Influx sink should be constructed.
func (ic InfluxConfig) Enabled() bool {
	return strings.TrimSpace(ic.URL) != ""
}

// Default returns a Config with the defaults that are not zero values.
func Default() Config {
	return Config{
		BleuVariant: string(types.VariantUncased),
		MinSteps:    DeriveMinSteps,
		RunMetaName: "flags.txt",
	}
}

// LoadFile merges values from a YAML config file into cfg. Fields already
// set by flags are expected to be re-applied by the caller after merging;
// the file simply decodes over the current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// OneShot reports whether the file-vs-file mode is requested.
func (c Config) OneShot() bool {
	return strings.TrimSpace(c.HypothesisPath) != ""
}

// Variants returns the active scoring variants in emission order.
func (c Config) Variants() []types.Variant {
	switch c.BleuVariant {
	case "both":
		return []types.Variant{types.VariantUncased, types.VariantCased}
	case string(types.VariantCased):
		return []types.Variant{types.VariantCased}
	default:
		return []types.Variant{types.VariantUncased}
	}
}

// Validate rejects contradictory or incomplete configurations. It performs
// no I/O so misuse is caught before anything is touched.
func (c Config) Validate() error {
	oneShot := c.OneShot()
	watch := strings.TrimSpace(c.ModelDir) != ""
	if oneShot && watch {
		return fmt.Errorf("%w: --hypothesis and --model-dir are mutually exclusive", ErrUsage)
	}
	if !oneShot && !watch {
		return fmt.Errorf("%w: either --hypothesis or --model-dir is required", ErrUsage)
	}
	if strings.TrimSpace(c.ReferencePath) == "" {
		return fmt.Errorf("%w: --reference is required", ErrUsage)
	}
	switch c.BleuVariant {
	case string(types.VariantCased), string(types.VariantUncased), "both":
	default:
		return fmt.Errorf("%w: --bleu-variant must be cased, uncased or both, got %q", ErrUsage, c.BleuVariant)
	}
	if c.WaitSeconds < 0 {
		return fmt.Errorf("%w: --wait-seconds must be >= 0, got %d", ErrUsage, c.WaitSeconds)
	}
	if c.MinSteps < DeriveMinSteps {
		return fmt.Errorf("%w: --min-steps must be >= -1, got %d", ErrUsage, c.MinSteps)
	}
	if oneShot {
		return nil
	}
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("%w: --source is required in checkpoint mode", ErrUsage)
	}
	if strings.TrimSpace(c.Translator) == "" {
		return fmt.Errorf("%w: --translator is required in checkpoint mode", ErrUsage)
	}
	if c.Influx.Enabled() {
		if c.Influx.Token == "" || c.Influx.Org == "" || c.Influx.Bucket == "" {
			return fmt.Errorf("%w: influx sink requires url, token, org and bucket", ErrUsage)
		}
	}
	return nil
}
