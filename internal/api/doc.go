// Package api implements the JSON HTTP API for the course assistant.
//
// # Endpoints
//
//	POST   /api/v1/query                - ask a question, optionally inside a session
//	GET    /api/v1/courses              - course catalog analytics
//	GET    /api/v1/stats                - pipeline counters and catalog analytics
//	POST   /api/v1/sessions/{id}/clear  - drop a session's conversation history
//	DELETE /api/v1/sessions/{id}        - delete a session and its history
//	GET    /health                      - liveness probe
//	GET    /ready                       - readiness probe (pings the database)
//
// # Wire format
//
// Success responses carry the payload directly, for example:
//
//	{"answer": "...", "sources": [{"text": "...", "link": "..."}], "session_id": "..."}
//
// Error responses always use the error envelope:
//
//	{"error": {"code": "...", "message": "...", "status": 400}}
//
// The code field is a stable machine-readable identifier (invalid_json,
// query_required, invalid_session, session_not_found, rate_limited,
// internal_error); message is human-readable and may change.
//
// # Middleware
//
// Requests pass through recovery, logging, CORS, and per-IP rate limiting,
// in that order. /health and /ready sit outside the middleware stack so
// orchestrator probes are never rate limited or logged per request.
package api
