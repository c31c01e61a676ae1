package models

// InstanceInfo holds metadata about a configured Chef server instance
type InstanceInfo struct {
	Name         string `json:"name" yaml:"name"`
	ServerURL    string `json:"server_url" yaml:"server_url"`
	Organization string `json:"organization" yaml:"organization"`
	ClientName   string `json:"client_name" yaml:"client_name"`
	Default      bool   `json:"default,omitempty" yaml:"default,omitempty"`
}
