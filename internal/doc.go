// Package internal holds the registration server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - intake: the registration pipeline (email, store, legacy roster)
// - domain: registrations, settings, and identifiers
// - email, roster, relayclient: outbound integrations
// - standings: public roster and ranking
// - storage: PostgreSQL repositories and migrations
// - auth, audit, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
