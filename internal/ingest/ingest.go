// Package ingest loads a scraped doctor listing into the directory.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"medmatch/internal/doctor"
	"medmatch/internal/specialty"
)

const unknownLocation = "Unknown"

var (
	whitespace  = regexp.MustCompile(`\s+`)
	workingArea = regexp.MustCompile(`(?i)Working\s+Area:\s*([\w\s-]+?),\s*([\w\s\d.-]+)`)
)

var ErrEmptyListing = errors.New("listing contains no doctors")

// Listing is one scraped directory entry. Field names follow the scraper's
// export.
type Listing struct {
	Title          string `json:"Title"`
	Specialty      string `json:"mb2"`
	Info           string `json:"Info"`
	Clinic         string `json:"mb0"`
	ClinicDetail   string `json:"mb02"`
	Image          string `json:"Image"`
	Qualifications string `json:"aonmedteamdiscription"`
	ProfileURL     string `json:"Title_URL"`
}

// CleanText collapses runs of whitespace and trims.
func CleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ExtractLocation pulls "city, area" out of an info blurb such as
// "Working Area: Dhaka, Dhanmondi". It returns "Unknown" when absent.
func ExtractLocation(info string) string {
	m := workingArea.FindStringSubmatch(info)
	if m == nil {
		return unknownLocation
	}
	city, area := CleanText(m[1]), CleanText(m[2])
	if area == "" {
		return city
	}
	return city + ", " + area
}

// ToDoctor converts a listing, normalizing its specialty.
func ToDoctor(l Listing, specialties *specialty.Normalizer) doctor.Doctor {
	raw := CleanText(l.Specialty)
	if raw == "" {
		raw = specialty.Fallback
	}
	primary := specialties.Normalize(raw)

	name := CleanText(l.Title)
	if name == "" {
		name = "No Name Provided"
	}

	notes := fmt.Sprintf("Qualifications: %s\nProfile URL: %s", CleanText(l.Qualifications), strings.TrimSpace(l.ProfileURL))

	return doctor.Doctor{
		Name:             name,
		PrimarySpecialty: primary,
		Specialties:      []string{primary},
		LocationText:     ExtractLocation(l.Info),
		ClinicAddress:    strings.TrimSpace(CleanText(l.Clinic) + " " + CleanText(l.ClinicDetail)),
		ProfileImage:     strings.TrimSpace(l.Image),
		Notes:            strings.TrimSpace(notes),
	}
}

type Loader struct {
	repo        doctor.Repository
	specialties *specialty.Normalizer
	log         *zap.Logger
}

func NewLoader(repo doctor.Repository, specialties *specialty.Normalizer, log *zap.Logger) *Loader {
	return &Loader{repo: repo, specialties: specialties, log: log}
}

// Run reads a JSON array of listings from path and replaces the directory
// with it in one transaction. It returns the number of doctors written.
func (l *Loader) Run(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read listing: %w", err)
	}

	var listings []Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return 0, fmt.Errorf("parse listing %s: %w", path, err)
	}
	if len(listings) == 0 {
		return 0, ErrEmptyListing
	}
	l.log.Info("listing loaded", zap.String("path", path), zap.Int("records", len(listings)))

	doctors := make([]doctor.Doctor, 0, len(listings))
	fallbacks := 0
	for _, listing := range listings {
		d := ToDoctor(listing, l.specialties)
		if d.PrimarySpecialty == specialty.Fallback {
			fallbacks++
		}
		doctors = append(doctors, d)
	}

	if err := l.repo.ReplaceAll(ctx, doctors); err != nil {
		return 0, fmt.Errorf("replace directory: %w", err)
	}
	l.log.Info("directory replaced",
		zap.Int("doctors", len(doctors)),
		zap.Int("unmatched_specialties", fallbacks))
	return len(doctors), nil
}
