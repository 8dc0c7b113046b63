package music_test

import (
	"testing"

	"songforge/internal/music"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		want music.Key
		ok   bool
	}{
		{"C Major", music.KeyCMajor, true},
		{"g major", music.KeyGMajor, true},
		{"F#", music.KeyFSharpMajor, true},
		{"a# MAJOR", music.KeyASharpMajor, true},
		{"  B  ", music.KeyBMajor, true},
		{"H Major", "", false},
		{"", "", false},
		{"C Minor", "", false},
	}
	for _, tc := range cases {
		got, ok := music.ParseKey(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseKey(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAllKeysAreValid(t *testing.T) {
	keys := music.AllKeys()
	if len(keys) != 12 {
		t.Fatalf("key count = %d, want 12", len(keys))
	}
	for _, key := range keys {
		if !key.Valid() {
			t.Fatalf("key %q reported invalid", key)
		}
	}
}

func TestValidTempo(t *testing.T) {
	for _, bpm := range []int{30, 80, 220} {
		if !music.ValidTempo(bpm) {
			t.Fatalf("ValidTempo(%d) = false", bpm)
		}
	}
	for _, bpm := range []int{0, 29, 221, -10} {
		if music.ValidTempo(bpm) {
			t.Fatalf("ValidTempo(%d) = true", bpm)
		}
	}
}

func TestBPMRange(t *testing.T) {
	band := music.BPMRange{Min: 100, Max: 120}
	if got := band.Midpoint(); got != 110 {
		t.Fatalf("midpoint = %d, want 110", got)
	}
	if !band.Contains(100) || !band.Contains(120) || band.Contains(121) {
		t.Fatal("Contains bounds are wrong")
	}
	if !band.Valid() {
		t.Fatal("band should be valid")
	}
	if (music.BPMRange{Min: 120, Max: 100}).Valid() {
		t.Fatal("inverted band should be invalid")
	}
	if (music.BPMRange{Min: 10, Max: 100}).Valid() {
		t.Fatal("band below MinBPM should be invalid")
	}
}
