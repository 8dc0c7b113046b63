package voice

import (
	"strings"
	"time"

	"songforge/internal/music"
	"songforge/internal/services"
)

// Range buckets a singer's comfortable vocal range.
type Range string

const (
	RangeLow     Range = "low"
	RangeLowMid  Range = "low_mid"
	RangeMid     Range = "mid"
	RangeMidHigh Range = "mid_high"
	RangeHigh    Range = "high"
)

var allRanges = []Range{RangeLow, RangeLowMid, RangeMid, RangeMidHigh, RangeHigh}

// ParseRange maps analyzer output onto a known vocal range bucket.
func ParseRange(value string) (Range, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, r := range allRanges {
		if normalized == string(r) {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether the range is a known bucket.
func (r Range) Valid() bool {
	for _, known := range allRanges {
		if r == known {
			return true
		}
	}
	return false
}

// Profile captures what voice analysis learned about a user's singing.
// Each user has at most one profile; saving replaces any previous one.
type Profile struct {
	UserID          string
	AssetRef        string
	VocalRange      Range
	RangeDetail     string
	OptimalKeys     []music.Key
	TempoBand       music.BPMRange
	Characteristics []string
	Confidence      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the profile is storable.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return services.Wrap(services.ErrValidation, "voice", "validate", "user id required", nil)
	}
	if strings.TrimSpace(p.AssetRef) == "" {
		return services.Wrap(services.ErrValidation, "voice", "validate", "asset ref required", nil)
	}
	if !p.VocalRange.Valid() {
		return services.Wrap(services.ErrValidation, "voice", "validate", "unknown vocal range "+string(p.VocalRange), nil)
	}
	for _, key := range p.OptimalKeys {
		if !key.Valid() {
			return services.Wrap(services.ErrValidation, "voice", "validate", "unsupported key "+string(key), nil)
		}
	}
	if !p.TempoBand.Valid() {
		return services.Wrap(services.ErrValidation, "voice", "validate", "tempo band out of bounds", nil)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return services.Wrap(services.ErrValidation, "voice", "validate", "confidence must be 0-100", nil)
	}
	return nil
}
