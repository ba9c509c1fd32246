package models

import "time"

// Company is a tenant of the receptionist engine.
type Company struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Timezone     string       `json:"timezone"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Features     FeatureFlags `json:"features,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Location resolves the company timezone, falling back to UTC when the name
// is empty or unknown.
func (c *Company) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FeatureFlags is a flat per-tenant map gating tool visibility and loop
// parameters. Values are booleans, numbers, or strings.
type FeatureFlags map[string]any

// Bool returns the flag value as a boolean, false when absent or mistyped.
func (f FeatureFlags) Bool(key string) bool {
	if f == nil {
		return false
	}
	v, ok := f[key].(bool)
	return ok && v
}

// Int returns the flag value as an int, or def when absent or mistyped.
// JSON and YAML decoders produce float64/int variants, both are accepted.
func (f FeatureFlags) Int(key string, def int) int {
	if f == nil {
		return def
	}
	switch v := f[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the flag value as a string, or def when absent or mistyped.
func (f FeatureFlags) String(key, def string) string {
	if f == nil {
		return def
	}
	if v, ok := f[key].(string); ok && v != "" {
		return v
	}
	return def
}
