// Package voice models analyzed voice profiles and persists at most one
// profile per user.
package voice
