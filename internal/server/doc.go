// Package server exposes the session engine, token ledger, and human
// request service over a JSON HTTP API with bearer auth and per-user
// rate limiting.
package server
