// Package config loads the description of a link: the artifact to produce,
// the backends to load, the inputs to offer and the native symbols the host
// already knows about.
//
// A description is a YAML document. Selected fields can be overridden from
// the environment with LDPLUG_* variables.
package config

import (
	"fmt"
	"strings"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/plugin"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// Config describes one link.
type Config struct {
	// Output is the artifact being produced.
	Output Output `yaml:"output"`

	// Options are passed to every backend as OPTION entries.
	Options []string `yaml:"options,omitempty"`

	// Backends lists the backends to load, in claim priority order. An entry
	// is either a registered backend name or a path to a shared object.
	Backends []string `yaml:"backends"`

	// Inputs are offered for claiming in order.
	Inputs []string `yaml:"inputs"`

	// Native lists symbols defined or referenced by inputs the host links
	// itself.
	Native []NativeSymbol `yaml:"native,omitempty"`

	// LogLevel is the minimum level written by the command line driver.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Output names the artifact and its kind.
type Output struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// NativeSymbol is a symbol from a regular object or a shared library.
type NativeSymbol struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	Kind    string `yaml:"kind"`
	Shared  bool   `yaml:"shared,omitempty"`
}

// envOverrides is filled from the environment. Empty values leave the file
// setting untouched.
type envOverrides struct {
	OutputName string   `envconfig:"LDPLUG_OUTPUT_NAME"`
	OutputType string   `envconfig:"LDPLUG_OUTPUT_TYPE"`
	Options    []string `envconfig:"LDPLUG_OPTIONS"`
	Backends   []string `envconfig:"LDPLUG_BACKENDS"`
	LogLevel   string   `envconfig:"LDPLUG_LOG_LEVEL"`
}

var symbolKinds = map[string]symbol.Kind{
	"def":       symbol.Def,
	"weakdef":   symbol.WeakDef,
	"undef":     symbol.Undef,
	"weakundef": symbol.WeakUndef,
	"common":    symbol.Common,
}

// Default returns a description producing a.out as an executable.
func Default() *Config {
	return &Config{
		Output:   Output{Name: "a.out", Type: capability.OutputExec.String()},
		LogLevel: "info",
	}
}

// Option adjusts a description after the file and the environment are
// applied and before it is validated.
type Option func(*Config)

// WithBackends replaces the configured backends when backends is non-empty.
func WithBackends(backends []string) Option {
	return func(c *Config) {
		if len(backends) > 0 {
			c.Backends = append([]string(nil), backends...)
		}
	}
}

// WithInputs appends inputs to the configured ones.
func WithInputs(inputs []string) Option {
	return func(c *Config) {
		c.Inputs = append(c.Inputs, inputs...)
	}
}

// WithOptions appends backend options to the configured ones.
func WithOptions(options []string) Option {
	return func(c *Config) {
		c.Options = append(c.Options, options...)
	}
}

// Load reads the description at path from fs, applies environment
// overrides looked up through lookup, then opts, and validates the result.
// A nil lookup reads the process environment.
func Load(fs afero.Fs, path string, lookup func(string) (string, bool), opts ...Option) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, lookup, opts...)
}

// Parse decodes a YAML description, applies environment overrides and opts,
// and validates the result.
func Parse(data []byte, lookup func(string) (string, bool), opts ...Option) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var env envOverrides
	var err error
	if lookup != nil {
		err = envconfig.Process("", &env, lookup)
	} else {
		err = envconfig.Process("", &env)
	}
	if err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if env.OutputName != "" {
		c.Output.Name = env.OutputName
	}
	if env.OutputType != "" {
		c.Output.Type = env.OutputType
	}
	if len(env.Options) > 0 {
		c.Options = env.Options
	}
	if len(env.Backends) > 0 {
		c.Backends = env.Backends
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	return nil
}

// Validate checks that every enumerated field holds a known value.
func (c *Config) Validate() error {
	if c.Output.Name == "" {
		return fmt.Errorf("output.name must be set")
	}
	if _, err := capability.ParseOutputType(c.Output.Type); err != nil {
		return fmt.Errorf("output.type: %w", err)
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be listed")
	}
	for i, n := range c.Native {
		if n.Name == "" {
			return fmt.Errorf("native[%d]: name must be set", i)
		}
		if _, ok := symbolKinds[strings.ToLower(n.Kind)]; !ok {
			return fmt.Errorf("native[%d] %s: unknown kind %q", i, n.Name, n.Kind)
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Resolver builds the host resolver seeded with the native symbols.
func (c *Config) Resolver() *symbol.GlobalResolver {
	r := symbol.NewGlobalResolver()
	for _, n := range c.Native {
		origin := symbol.OriginRegular
		if n.Shared {
			origin = symbol.OriginShared
		}
		r.AddNative(symbol.NativeSymbol{
			Name:    n.Name,
			Version: n.Version,
			Kind:    symbolKinds[strings.ToLower(n.Kind)],
			Origin:  origin,
		})
	}
	return r
}

// SessionOptions converts the description into options for a session that
// reads inputs from fs.
func (c *Config) SessionOptions(fs afero.Fs, logger *zap.Logger) (*plugin.SessionOptions, error) {
	outputType, err := capability.ParseOutputType(c.Output.Type)
	if err != nil {
		return nil, err
	}

	resolver := c.Resolver()
	resolver.ExportDynamic = outputType == capability.OutputDyn

	opts := plugin.DefaultSessionOptions()
	opts.Fs = fs
	opts.Logger = logger
	opts.Resolver = resolver
	opts.OutputName = c.Output.Name
	opts.OutputType = outputType
	opts.PluginOptions = append([]string(nil), c.Options...)
	return opts, nil
}
