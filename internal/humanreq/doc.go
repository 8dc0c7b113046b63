// Package humanreq records custom-song briefs for the human production
// team, available only on the top plan tier.
package humanreq
