// Package generator is the HTTP client for the external song
// generation service.
package generator
