// Package analyzer is the HTTP client for the external voice analysis
// service.
package analyzer
