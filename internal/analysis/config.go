package analysis

import "fmt"

// Defaults matching the environment the analyzer was built for:
// Dutch political interviews analyzed with a low, stable temperature.
const (
	DefaultModel       = "gpt-4"
	DefaultLanguage    = "Dutch"
	DefaultTemperature = 0.1
)

// Configuration holds the per-engine settings. It is constructed once,
// validated, and never mutated afterwards, so engines can be shared
// freely between goroutines.
type Configuration struct {
	// Model is the provider model identifier. When BaseURL points at a
	// local endpoint any identifier is accepted as-is.
	Model string

	// Credential authenticates against a hosted provider. Optional for
	// local endpoints.
	Credential string

	// Language the analysis commentary should be written in.
	Language string

	// Temperature for completions, valid range 0.0 to 2.0.
	Temperature float64

	// BaseURL overrides the default provider routing. Setting it
	// selects local-endpoint mode.
	BaseURL string
}

type ConfigOption func(*Configuration)

func WithModel(model string) ConfigOption {
	return func(c *Configuration) { c.Model = model }
}

func WithCredential(credential string) ConfigOption {
	return func(c *Configuration) { c.Credential = credential }
}

func WithLanguage(language string) ConfigOption {
	return func(c *Configuration) { c.Language = language }
}

func WithTemperature(temperature float64) ConfigOption {
	return func(c *Configuration) { c.Temperature = temperature }
}

func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Configuration) { c.BaseURL = baseURL }
}

// NewConfiguration applies the given options over the defaults and
// validates the outcome.
func NewConfiguration(opts ...ConfigOption) (Configuration, error) {
	cfg := Configuration{
		Model:       DefaultModel,
		Language:    DefaultLanguage,
		Temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Model == "" {
		return Configuration{}, fmt.Errorf("model identifier cannot be empty")
	}
	if cfg.Language == "" {
		return Configuration{}, fmt.Errorf("language cannot be empty")
	}
	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		return Configuration{}, fmt.Errorf("temperature %.2f outside valid range [0.0, 2.0]", cfg.Temperature)
	}

	return cfg, nil
}
