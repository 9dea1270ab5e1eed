package speech

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the speech pipeline configuration, read once when a task is
// constructed.
type Config struct {
	// Rate is the speech rate multiplier (1.0 = normal).
	Rate float64 `yaml:"rate" mapstructure:"rate"`

	// ScaleSilenceToRate scales silence durations by the speech rate.
	ScaleSilenceToRate bool `yaml:"scale_silence_to_rate" mapstructure:"scale_silence_to_rate"`

	// Silence holds per-delimiter-class silence durations.
	Silence SilenceConfig `yaml:"silence" mapstructure:"silence"`

	// Filters holds the enabled text filter kinds.
	Filters FilterConfig `yaml:"filters" mapstructure:"filters"`
}

// SilenceConfig holds silence durations in milliseconds per delimiter
// class. Zero disables insertion for that class.
type SilenceConfig struct {
	LineFeedMs    int `yaml:"line_feed_ms" mapstructure:"line_feed_ms"`
	SentenceMs    int `yaml:"sentence_ms" mapstructure:"sentence_ms"`
	QuestionMs    int `yaml:"question_ms" mapstructure:"question_ms"`
	ExclamationMs int `yaml:"exclamation_ms" mapstructure:"exclamation_ms"`
}

// FilterConfig selects which substring classes are removed from input.
type FilterConfig struct {
	HashTokens  bool `yaml:"hash_tokens" mapstructure:"hash_tokens"`
	WebLinks    bool `yaml:"web_links" mapstructure:"web_links"`
	MailtoLinks bool `yaml:"mailto_links" mapstructure:"mailto_links"`
}

// DefaultConfig returns the default speech configuration.
func DefaultConfig() *Config {
	return &Config{
		Rate: 1.0,
		Silence: SilenceConfig{
			LineFeedMs:    100,
			SentenceMs:    200,
			QuestionMs:    200,
			ExclamationMs: 200,
		},
	}
}

// ConfigFromViper unmarshals the "speech" section of v.
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if sub := v.Sub("speech"); sub != nil {
		if err := sub.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("parsing speech configuration: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Rate <= 0 || c.Rate > 4.0 {
		return fmt.Errorf("speech rate must be in (0, 4.0], got %.2f", c.Rate)
	}
	for name, ms := range map[string]int{
		"line_feed_ms":   c.Silence.LineFeedMs,
		"sentence_ms":    c.Silence.SentenceMs,
		"question_ms":    c.Silence.QuestionMs,
		"exclamation_ms": c.Silence.ExclamationMs,
	} {
		if ms < 0 {
			return fmt.Errorf("silence duration %s must not be negative, got %d", name, ms)
		}
	}
	return nil
}

// SilencePolicy derives the chunker's silence policy from the config.
func (c *Config) SilencePolicy() SilencePolicy {
	return SilencePolicy{
		LineBreak:   time.Duration(c.Silence.LineFeedMs) * time.Millisecond,
		Sentence:    time.Duration(c.Silence.SentenceMs) * time.Millisecond,
		Question:    time.Duration(c.Silence.QuestionMs) * time.Millisecond,
		Exclamation: time.Duration(c.Silence.ExclamationMs) * time.Millisecond,
		ScaleToRate: c.ScaleSilenceToRate,
		Rate:        c.Rate,
	}
}

// Filter derives the text filter from the config.
func (c *Config) Filter() Filter {
	return Filter{
		HashTokens:  c.Filters.HashTokens,
		WebLinks:    c.Filters.WebLinks,
		MailToLinks: c.Filters.MailtoLinks,
	}
}
