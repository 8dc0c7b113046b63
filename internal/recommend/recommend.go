// Package recommend produces key and tempo suggestions from genre
// conventions and analyzed voice profiles. All functions are pure.
package recommend

import (
	"strings"

	"songforge/internal/music"
	"songforge/internal/voice"
)

// DefaultBand is suggested when a genre has no specific tempo convention.
var DefaultBand = music.BPMRange{Min: 80, Max: 120}

var genreBands = map[string]music.BPMRange{
	"afrobeats": {Min: 100, Max: 120},
	"hip-hop":   {Min: 70, Max: 90},
	"reggae":    {Min: 60, Max: 90},
	"dancehall": {Min: 90, Max: 110},
	"amapiano":  {Min: 108, Max: 118},
	"highlife":  {Min: 100, Max: 130},
	"gospel":    {Min: 60, Max: 100},
	"r&b":       {Min: 60, Max: 85},
}

var genreAliases = map[string]string{
	"afrobeat": "afrobeats",
	"afro":     "afrobeats",
	"hiphop":   "hip-hop",
	"hip hop":  "hip-hop",
	"rap":      "hip-hop",
	"rnb":      "r&b",
	"r and b":  "r&b",
}

// SuggestTempo returns the conventional tempo band for a genre. The
// second return is false when the genre has no specific recommendation
// and the default band was used.
func SuggestTempo(genre string) (music.BPMRange, bool) {
	normalized := strings.ToLower(strings.TrimSpace(genre))
	if alias, ok := genreAliases[normalized]; ok {
		normalized = alias
	}
	if band, ok := genreBands[normalized]; ok {
		return band, true
	}
	return DefaultBand, false
}

// MatchToVoice derives a personalized key and tempo band from an
// analyzed profile. The third return is false when the profile carries
// no usable key preference.
func MatchToVoice(profile *voice.Profile) (music.Key, music.BPMRange, bool) {
	if profile == nil {
		return music.DefaultKey, DefaultBand, false
	}
	band := profile.TempoBand
	if !band.Valid() {
		band = DefaultBand
	}
	if len(profile.OptimalKeys) == 0 {
		return music.DefaultKey, band, false
	}
	return profile.OptimalKeys[0], band, true
}
