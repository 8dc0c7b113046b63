package session_test

import (
	"errors"
	"testing"

	"songforge/internal/services"
	"songforge/internal/session"
)

func validIntake() session.SongIntake {
	return session.SongIntake{
		Title:             "Midnight Drive",
		Genre:             "Afrobeats",
		Mood:              "Upbeat",
		Duration:          "3:00",
		ArtistInspiration: "Burna Boy",
		Language:          "English",
	}
}

func TestNormalizeCanonicalizesLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"English", "en"},
		{"en-US", "en"},
		{"Pidgin", "pcm"},
		{"yoruba", "yo"},
		{"IGBO", "ig"},
		{"fr", "fr"},
	}
	for _, tc := range cases {
		intake := validIntake()
		intake.Language = tc.in
		intake.Normalize()
		if intake.Language != tc.want {
			t.Fatalf("language %q normalized to %q, want %q", tc.in, intake.Language, tc.want)
		}
	}
}

func TestNormalizeTrimsAndLowersFields(t *testing.T) {
	intake := session.SongIntake{
		Title:             "  Midnight Drive  ",
		Genre:             " AFROBEATS ",
		Mood:              "Upbeat",
		Duration:          " 3:00 ",
		ArtistInspiration: " Burna Boy ",
		Language:          "english",
	}
	intake.Normalize()
	if intake.Title != "Midnight Drive" {
		t.Fatalf("title = %q", intake.Title)
	}
	if intake.Genre != "afrobeats" {
		t.Fatalf("genre = %q", intake.Genre)
	}
	if intake.Mood != "upbeat" {
		t.Fatalf("mood = %q", intake.Mood)
	}
}

func TestValidateRequiresAllFields(t *testing.T) {
	fields := []struct {
		name   string
		mutate func(*session.SongIntake)
	}{
		{"title", func(i *session.SongIntake) { i.Title = "" }},
		{"genre", func(i *session.SongIntake) { i.Genre = "" }},
		{"mood", func(i *session.SongIntake) { i.Mood = "" }},
		{"duration", func(i *session.SongIntake) { i.Duration = "" }},
		{"artist_inspiration", func(i *session.SongIntake) { i.ArtistInspiration = "" }},
		{"language", func(i *session.SongIntake) { i.Language = "" }},
	}
	for _, tc := range fields {
		t.Run(tc.name, func(t *testing.T) {
			intake := validIntake()
			tc.mutate(&intake)
			intake.Normalize()
			if err := intake.Validate(); !errors.Is(err, services.ErrIncompleteIntake) {
				t.Fatalf("err = %v, want ErrIncompleteIntake", err)
			}
		})
	}
}

func TestValidateRejectsUnparseableLanguage(t *testing.T) {
	intake := validIntake()
	intake.Language = "!!!"
	intake.Normalize()
	if err := intake.Validate(); !errors.Is(err, services.ErrIncompleteIntake) {
		t.Fatalf("err = %v, want ErrIncompleteIntake", err)
	}
}

func TestValidateAcceptsCompleteIntake(t *testing.T) {
	intake := validIntake()
	intake.Normalize()
	if err := intake.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
