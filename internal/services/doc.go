// Package services holds the shared error taxonomy and clients for the
// external collaborators (song generator, voice analyzer).
package services
