package binschema

import (
	"fmt"
	"os"

	"github.com/casbin/govaluate"
	env "github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// CompilerConfig bounds the Compiler (spec.md §4.1 "failure modes": schema
// depth and type count are configured limits, not hard-coded constants) and
// carries a DefaultOptions value loaded alongside them. NewVersionedReader
// does not read DefaultOptions; it always uses the Options passed to it.
//
// Limits may be given as plain integers or as small arithmetic expressions
// (e.g. "8*4") resolved with govaluate, in the style of dynssz's spec-value
// expressions; no named values are defined, so only plain arithmetic resolves.
type CompilerConfig struct {
	MaxSchemaDepth     string `yaml:"max_schema_depth"`
	MaxSchemaTypeCount string `yaml:"max_schema_type_count"`

	DefaultOptions Options `yaml:"default_options"`
}

// Options are the versioned-read policy flags (spec.md §3.5).
type Options struct {
	AllowFloatToIntTruncation   bool `yaml:"allow_float_to_int_truncation"`
	AllowDropExcessArrayItems   bool `yaml:"allow_drop_excess_array_items"`
	AllowDropExcessStructFields bool `yaml:"allow_drop_excess_struct_members"`
}

// DefaultCompilerConfig is used whenever no config is loaded explicitly.
var DefaultCompilerConfig = CompilerConfig{
	MaxSchemaDepth:     "64",
	MaxSchemaTypeCount: "4096",
	DefaultOptions: Options{
		AllowFloatToIntTruncation:   false,
		AllowDropExcessArrayItems:   false,
		AllowDropExcessStructFields: false,
	},
}

// LoadCompilerConfigYAML reads a CompilerConfig from YAML bytes, starting
// from DefaultCompilerConfig so a partial file only overrides what it sets.
func LoadCompilerConfigYAML(data []byte) (CompilerConfig, error) {
	cfg := DefaultCompilerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CompilerConfig{}, fmt.Errorf("binschema: parsing compiler config: %w", err)
	}
	return cfg, nil
}

// LoadCompilerConfigFile is a convenience wrapper reading a YAML file from disk.
func LoadCompilerConfigFile(path string) (CompilerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompilerConfig{}, fmt.Errorf("binschema: reading compiler config %q: %w", path, err)
	}
	return LoadCompilerConfigYAML(data)
}

// ApplyEnvOverrides lets BINSCHEMA_MAX_SCHEMA_DEPTH / BINSCHEMA_MAX_SCHEMA_TYPE_COUNT
// environment variables override a loaded config, taking precedence over the
// YAML file - the usual "env wins over file" precedence order.
func (c CompilerConfig) ApplyEnvOverrides() CompilerConfig {
	if env.Has("BINSCHEMA_MAX_SCHEMA_DEPTH") {
		c.MaxSchemaDepth = env.Str("BINSCHEMA_MAX_SCHEMA_DEPTH", c.MaxSchemaDepth)
	}
	if env.Has("BINSCHEMA_MAX_SCHEMA_TYPE_COUNT") {
		c.MaxSchemaTypeCount = env.Str("BINSCHEMA_MAX_SCHEMA_TYPE_COUNT", c.MaxSchemaTypeCount)
	}
	if env.Has("BINSCHEMA_ALLOW_FLOAT_TRUNCATION") {
		c.DefaultOptions.AllowFloatToIntTruncation = env.Bool("BINSCHEMA_ALLOW_FLOAT_TRUNCATION")
	}
	return c
}

// resolveLimit evaluates a limit expression against no named variables (plain
// arithmetic), returning a non-negative int. A limit of "0" or "" means unlimited.
func resolveLimit(expr string) (int, error) {
	if expr == "" {
		return 0, nil
	}
	evaluable, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, fmt.Errorf("binschema: parsing limit expression %q: %w", expr, err)
	}
	result, err := evaluable.Evaluate(nil)
	if err != nil {
		return 0, fmt.Errorf("binschema: evaluating limit expression %q: %w", expr, err)
	}
	f, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("binschema: limit expression %q did not resolve to a number", expr)
	}
	if f < 0 {
		return 0, nil
	}
	return int(f), nil
}

// maxDepth resolves MaxSchemaDepth, defaulting to DefaultCompilerConfig's value on error.
func (c CompilerConfig) maxDepth() int {
	n, err := resolveLimit(c.MaxSchemaDepth)
	if err != nil {
		n, _ = resolveLimit(DefaultCompilerConfig.MaxSchemaDepth)
	}
	return n
}

func (c CompilerConfig) maxTypeCount() int {
	n, err := resolveLimit(c.MaxSchemaTypeCount)
	if err != nil {
		n, _ = resolveLimit(DefaultCompilerConfig.MaxSchemaTypeCount)
	}
	return n
}
