package leads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Collection store names.
const (
	StoreLeads       = "leads"
	StoreManualLeads = "manual-leads"
	StoreUsers       = "users"
	StoreMetaLeads   = "meta-leads"
	StoreContacts    = "contacts"
	StoreCALeads     = "ca-leads"
	StorePageInsight = "page-insights"
)

// CollectionStores lists the collection stores in display order.
var CollectionStores = []string{
	StoreLeads,
	StoreManualLeads,
	StoreUsers,
	StoreMetaLeads,
	StoreContacts,
	StoreCALeads,
}

// EnvPrefix prefixes environment overrides, e.g. LEADBOARD_BASE_URL.
const EnvPrefix = "LEADBOARD_"

// Config describes the backend the dashboard talks to.
type Config struct {
	BaseURL     string                  `json:"base_url" yaml:"base_url"`
	Timeout     Duration                `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	SessionFile string                  `json:"session_file,omitempty" yaml:"session_file,omitempty"`
	SessionKey  string                  `json:"session_key,omitempty" yaml:"session_key,omitempty"`
	Stores      map[string]StoreConfig  `json:"stores,omitempty" yaml:"stores,omitempty"`
	Bulk        map[string]BulkConfig   `json:"bulk,omitempty" yaml:"bulk,omitempty"`
	Entities    map[string]EntityConfig `json:"entities,omitempty" yaml:"entities,omitempty"`
	Funnel      FunnelConfig            `json:"funnel,omitempty" yaml:"funnel,omitempty"`
	Source      string                  `json:"-" yaml:"-"`
}

// StoreConfig binds one store to its list endpoint.
type StoreConfig struct {
	Path       string `json:"path" yaml:"path"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Auth       *bool  `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// RequiresAuth defaults to true.
func (c StoreConfig) RequiresAuth() bool {
	return c.Auth == nil || *c.Auth
}

// BulkConfig binds a table to its bulk PATCH endpoint.
type BulkConfig struct {
	Path           string       `json:"path" yaml:"path"`
	Variant        PatchVariant `json:"variant,omitempty" yaml:"variant,omitempty"`
	RequireSuccess bool         `json:"require_success,omitempty" yaml:"require_success,omitempty"`
}

// EntityConfig binds a creatable/deletable entity to its endpoints.
type EntityConfig struct {
	Create string         `json:"create,omitempty" yaml:"create,omitempty"`
	Delete string         `json:"delete,omitempty" yaml:"delete,omitempty"`
	Schema map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// FunnelConfig names the status field and the ordered stages of the lead funnel.
type FunnelConfig struct {
	Field  string   `json:"field,omitempty" yaml:"field,omitempty"`
	Stages []string `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// Duration accepts "15s" style strings in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns the endpoints of the stock backend.
func DefaultConfig() Config {
	cfg := Config{BaseURL: "http://localhost:8080"}
	cfg.applyDefaults()
	return cfg
}

// LoadConfigFile reads a YAML config from disk, applies defaults and environment overrides.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return Config{}, fmt.Errorf("leads: open config %s: %w", path, err)
	}
	defer f.Close()
	cfg, err := DecodeConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("leads: decode config %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// DecodeConfig reads a config from any reader. Unknown keys are rejected. An empty document
// yields the defaults.
func DecodeConfig(r io.Reader) (Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("leads: parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides scalar settings from LEADBOARD_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvPrefix + "BASE_URL"); ok && v != "" {
		c.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = Duration(d)
		} else if secs, err := strconv.Atoi(v); err == nil {
			c.Timeout = Duration(time.Duration(secs) * time.Second)
		}
	}
	if v, ok := lookup(EnvPrefix + "SESSION_FILE"); ok && v != "" {
		c.SessionFile = v
	}
	if v, ok := lookup(EnvPrefix + "SESSION_KEY"); ok && v != "" {
		c.SessionKey = v
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("leads: config base_url is required")
	}
	for name, store := range c.Stores {
		if store.Path == "" {
			return fmt.Errorf("leads: store %s is missing path", name)
		}
	}
	for name, bulk := range c.Bulk {
		if _, err := ParsePatchVariant(string(bulk.Variant)); err != nil {
			return fmt.Errorf("leads: bulk endpoint %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = Duration(10 * time.Second)
	}
	if c.SessionKey == "" {
		c.SessionKey = DefaultSessionKey
	}
	if c.Stores == nil {
		c.Stores = map[string]StoreConfig{}
	}
	for name, def := range defaultStores() {
		if _, ok := c.Stores[name]; !ok {
			c.Stores[name] = def
		}
	}
	if c.Bulk == nil {
		c.Bulk = map[string]BulkConfig{}
	}
	for name, def := range defaultBulk() {
		if _, ok := c.Bulk[name]; !ok {
			c.Bulk[name] = def
		}
	}
	for name, bulk := range c.Bulk {
		variant, err := ParsePatchVariant(string(bulk.Variant))
		if err == nil {
			bulk.Variant = variant
			c.Bulk[name] = bulk
		}
	}
	if c.Entities == nil {
		c.Entities = map[string]EntityConfig{}
	}
	for name, def := range defaultEntities() {
		if _, ok := c.Entities[name]; !ok {
			c.Entities[name] = def
		}
	}
	if c.Funnel.Field == "" {
		c.Funnel.Field = "status"
	}
	if len(c.Funnel.Stages) == 0 {
		c.Funnel.Stages = []string{"new", "contacted", "qualified", "proposal", "won"}
	}
}

func defaultStores() map[string]StoreConfig {
	public := false
	return map[string]StoreConfig{
		StoreLeads:       {Path: "/api/leads", Collection: "leads"},
		StoreManualLeads: {Path: "/api/manual-leads", Collection: "leads"},
		StoreUsers:       {Path: "/api/users", Collection: "users"},
		StoreMetaLeads:   {Path: "/api/meta/leads", Collection: "leads"},
		StoreContacts:    {Path: "/api/contacts", Collection: "contacts", Auth: &public},
		StoreCALeads:     {Path: "/api/ca-leads", Collection: "leads"},
		StorePageInsight: {Path: "/api/meta/page-insights"},
	}
}

func defaultBulk() map[string]BulkConfig {
	return map[string]BulkConfig{
		StoreLeads:       {Path: "/api/leads/bulk-update", Variant: PatchShared},
		StoreManualLeads: {Path: "/api/manual-leads/bulk-update", Variant: PatchPerRow},
		StoreMetaLeads:   {Path: "/api/meta/leads/bulk-update", Variant: PatchShared},
		StoreContacts:    {Path: "/api/contacts/bulk-update", Variant: PatchShared},
		StoreCALeads:     {Path: "/api/ca-leads/bulk-update", Variant: PatchPerRow},
	}
}

func defaultEntities() map[string]EntityConfig {
	return map[string]EntityConfig{
		StoreManualLeads: {
			Create: "/api/manual-leads",
			Delete: "/api/manual-leads/{id}",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"name", "phone"},
				"properties": map[string]any{
					"name":   map[string]any{"type": "string", "minLength": 1},
					"phone":  map[string]any{"type": "string", "minLength": 6},
					"email":  map[string]any{"type": "string"},
					"source": map[string]any{"type": "string"},
					"status": map[string]any{"type": "string"},
				},
			},
		},
		StoreUsers: {
			Create: "/api/users",
			Delete: "/api/users/{id}",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"email", "role"},
				"properties": map[string]any{
					"email": map[string]any{"type": "string", "minLength": 3},
					"role":  map[string]any{"enum": []any{"admin", "sales", "viewer"}},
				},
			},
		},
		StoreContacts: {
			Delete: "/api/contacts/{id}",
		},
	}
}
