package models

// EntitySummary describes a Chef object without its full document
type EntitySummary struct {
	Name   string         `json:"name" yaml:"name"`
	Kind   string         `json:"kind" yaml:"kind"`
	URL    string         `json:"url" yaml:"url"`
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}
