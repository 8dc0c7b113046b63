// Package plan defines subscription tiers and the entitlements each
// tier grants.
package plan
