// Package gateway is the HTTP front of vox-gateway.
//
// # Overview
//
// Gateway wires the SQLite store, the account, agent, conversation and
// integration services, and serves them over a chi router:
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil { ... }
//	err = gw.Run(ctx) // blocks until ctx is cancelled
//
// # Endpoints
//
// Public:
//
//   - GET /health, GET /health/ready
//   - GET /metrics (when metrics.enabled)
//   - POST /api/auth/login, POST /api/auth/signup
//   - GET /api/integrations/{provider}/callback (OAuth redirect target)
//   - GET {media.url_prefix}/* (synthesized audio)
//
// Bearer token required:
//
//   - GET /api/me
//   - GET, POST /api/agents; GET, PUT, DELETE /api/agents/{id}
//   - POST /api/chat
//   - GET /api/conversations; GET, DELETE /api/conversations/{id}
//   - GET /api/conversations/{id}/messages
//   - GET /api/conversations/{id}/stream (SSE; token may be passed as ?access_token=)
//   - POST /api/voice/transcribe
//   - GET /api/integrations; POST /api/integrations/{provider}/connect|disconnect
//   - GET /api/integrations/gmail/messages, GET /api/integrations/google_calendar/events
//
// # Errors
//
// Errors are JSON {"error": "..."}. Validation failures are 400, missing or
// bad credentials 401, missing resources 404, a turn already in flight or a
// replayed Idempotency-Key 409, and provider outages 502. Anything else is a
// 500 with the detail only in the log.
//
// # Live Updates
//
// The stream endpoint sends a "ready" event, then one "message" event per
// message persisted to the conversation, from any client. Comment lines are
// sent periodically as heartbeats.
package gateway
