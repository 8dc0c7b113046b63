// Package notifications publishes session and production-request events
// to an ntfy topic when one is configured.
package notifications
