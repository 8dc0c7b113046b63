// Package music holds the shared musical vocabulary: supported keys,
// tempo bounds, and BPM ranges.
package music

import "strings"

// Key is a musical key a song can be generated in.
type Key string

const (
	KeyCMajor      Key = "C Major"
	KeyCSharpMajor Key = "C# Major"
	KeyDMajor      Key = "D Major"
	KeyDSharpMajor Key = "D# Major"
	KeyEMajor      Key = "E Major"
	KeyFMajor      Key = "F Major"
	KeyFSharpMajor Key = "F# Major"
	KeyGMajor      Key = "G Major"
	KeyGSharpMajor Key = "G# Major"
	KeyAMajor      Key = "A Major"
	KeyASharpMajor Key = "A# Major"
	KeyBMajor      Key = "B Major"
)

// DefaultKey is used when nothing better is known about the singer.
const DefaultKey = KeyCMajor

var allKeys = []Key{
	KeyCMajor, KeyCSharpMajor, KeyDMajor, KeyDSharpMajor,
	KeyEMajor, KeyFMajor, KeyFSharpMajor, KeyGMajor,
	KeyGSharpMajor, KeyAMajor, KeyASharpMajor, KeyBMajor,
}

var keySet = func() map[Key]struct{} {
	set := make(map[Key]struct{}, len(allKeys))
	for _, key := range allKeys {
		set[key] = struct{}{}
	}
	return set
}()

// AllKeys returns the supported keys in chromatic order.
func AllKeys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

// ParseKey maps user input like "g major", "F#", or "A# Major" onto a
// supported key.
func ParseKey(value string) (Key, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	normalized := strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(strings.ToLower(trimmed), "major")))
	for _, key := range allKeys {
		root := strings.ToUpper(strings.TrimSuffix(string(key), " Major"))
		if normalized == root {
			return key, true
		}
	}
	return "", false
}

// Valid reports whether the key is one of the supported keys.
func (k Key) Valid() bool {
	_, ok := keySet[k]
	return ok
}

func (k Key) String() string {
	return string(k)
}

// Tempo bounds in beats per minute.
const (
	MinBPM = 30
	MaxBPM = 220
)

// ValidTempo reports whether the BPM falls inside the supported range.
func ValidTempo(bpm int) bool {
	return bpm >= MinBPM && bpm <= MaxBPM
}

// BPMRange is an inclusive tempo band.
type BPMRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Midpoint returns the center of the band, used as a default tempo.
func (r BPMRange) Midpoint() int {
	return (r.Min + r.Max) / 2
}

// Contains reports whether bpm falls inside the band.
func (r BPMRange) Contains(bpm int) bool {
	return bpm >= r.Min && bpm <= r.Max
}

// Valid reports whether the band is well formed and inside tempo bounds.
func (r BPMRange) Valid() bool {
	return r.Min <= r.Max && ValidTempo(r.Min) && ValidTempo(r.Max)
}
