package config

// APIConfig configures the read-only HTTP API over the output streams.
type APIConfig struct {
	// Addr enables the API when set, e.g. ":8000".
	Addr string `json:"addr"`
	// Token, when set, is required as a Bearer token.
	Token string `json:"token"`
}
