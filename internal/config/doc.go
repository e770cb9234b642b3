// Package config handles configuration loading for vox-gateway.
//
// # Configuration File
//
// The gateway reads a YAML file. Its path is resolved in this order:
//
//  1. VOX_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/vox/gateway.yaml
//  3. ~/.config/vox/gateway.yaml
//
// # Environment Variables
//
// Values may reference environment variables as ${VAR_NAME}; unset variables
// expand to the empty string. LoadDotEnv reads a .env file into the
// environment first so secrets can stay out of the YAML:
//
//	auth:
//	  jwt_secret: "${VOX_JWT_SECRET}"
//	workflow:
//	  api_key: "${N8N_API_KEY}"
//
// # Durations
//
// Timeouts and TTLs are Go duration strings ("30s", "720h"). They are kept as
// raw strings in the YAML struct and parsed after decoding.
//
// # Sections
//
//	server:        http_addr, public_url
//	database:      path
//	auth:          jwt_secret, token_ttl, allow_signup
//	workflow:      webhook_url, api_key, timeout
//	speech:        enabled, base_url, api_key, voice_id, model_id, stt_model_id, timeout
//	media:         dir, url_prefix
//	chat:          title_length, idempotency_ttl, idempotency_max
//	integrations:  google.client_id, google.client_secret
//	cors:          allowed_origins
//	logging:       level, format (text|json)
//	metrics:       enabled, path
package config
