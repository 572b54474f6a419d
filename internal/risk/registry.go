package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"polytrader/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// limitsSchema constrains the hot-reloadable profile file: percentages in
// (0,1], counts >= 1. A profile failing validation keeps the previous
// snapshot in effect.
const limitsSchema = `{
	"type": "object",
	"properties": {
		"max_daily_loss_pct":        {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"max_daily_loss_usd":        {"type": "number", "exclusiveMinimum": 0},
		"max_daily_trades":          {"type": "integer", "minimum": 1},
		"max_portfolio_heat_pct":    {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"max_positions":             {"type": "integer", "minimum": 1},
		"max_position_pct":          {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"cooldown_after_loss_min":   {"type": "integer", "minimum": 0},
		"cooldown_after_win_min":    {"type": "integer", "minimum": 0},
		"stop_loss_pct":             {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"enable_correlation_check":  {"type": "boolean"},
		"max_correlated_positions":  {"type": "integer", "minimum": 1},
		"emergency_stop_daily_loss": {"type": "number", "exclusiveMinimum": 0, "maximum": 1}
	},
	"additionalProperties": false
}`

// Registry is a LimitsProvider backed by a YAML profile file that is
// re-validated and swapped in whenever the file changes on disk. Keys absent
// from the file keep their configured base value.
type Registry struct {
	path string
	base Limits
	v    *viper.Viper

	mu       sync.RWMutex
	current  Limits
	loadedAt time.Time

	schema *jsonschema.Schema
}

// NewRegistry reads the profile at path and watches it for updates.
func NewRegistry(path string, base Limits) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("risk registry: path cannot be empty")
	}
	schema, err := compileLimitsSchema()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("risk registry: reading %s failed: %w", path, err)
	}
	r := &Registry{path: path, base: base, v: v, schema: schema, current: base}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("risk registry: reload failed, keeping previous limits: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Current returns the limit set in effect.
func (r *Registry) Current() Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// LoadedAt reports when the active snapshot was installed.
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// SnapshotYAML renders the active limits for the admin endpoint.
func (r *Registry) SnapshotYAML() ([]byte, error) {
	limits := r.Current()
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(limits); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Registry) reload() error {
	if err := r.v.ReadInConfig(); err != nil {
		return err
	}
	settings := r.v.AllSettings()
	if err := r.validateSettings(settings); err != nil {
		return err
	}

	merged := r.base
	overlay, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(overlay, &merged); err != nil {
		return fmt.Errorf("risk registry: decoding profile failed: %w", err)
	}

	r.mu.Lock()
	r.current = merged
	r.loadedAt = time.Now()
	r.mu.Unlock()
	logger.Infof("risk registry: limits profile loaded from %s", r.path)
	return nil
}

func (r *Registry) validateSettings(settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := r.schema.Validate(doc); err != nil {
		return fmt.Errorf("risk registry: profile rejected by schema: %w", err)
	}
	return nil
}

func compileLimitsSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("limits.json", strings.NewReader(limitsSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("limits.json")
	if err != nil {
		return nil, fmt.Errorf("risk registry: compiling limits schema failed: %w", err)
	}
	return schema, nil
}
