// Package api defines the wire DTOs shared by the HTTP server and CLI
// and the converters from domain records into them.
package api
