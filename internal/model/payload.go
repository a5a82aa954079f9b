package model

import "strings"

// Payload is the opaque provider (or simulated) result.
type Payload map[string]any

// Envelope is what a check returns to the caller.
type Envelope struct {
	Cached    bool    `json:"cached"`
	Simulated bool    `json:"simulated"`
	Result    Payload `json:"result"`
}

// ProviderConfig carries the upstream credentials for one check.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key"`
	ServiceID string `mapstructure:"service_id"`
	APIBase   string `mapstructure:"api_base"`
}

// Complete reports whether all three fields are set; otherwise checks run in simulated mode.
func (c ProviderConfig) Complete() bool {
	return strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.ServiceID) != "" &&
		strings.TrimSpace(c.APIBase) != ""
}
