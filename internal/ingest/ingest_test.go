package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmatch/internal/doctor"
	"medmatch/internal/specialty"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Dr. Abdul Karim", CleanText("  Dr.\tAbdul \n\n Karim "))
	assert.Equal(t, "", CleanText(" \n "))
}

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		info string
		want string
	}{
		{info: "Working Area: Dhaka, Dhanmondi", want: "Dhaka, Dhanmondi"},
		{info: "BMDC Reg 123. working   area:  Chittagong ,  Agrabad 2", want: "Chittagong, Agrabad 2"},
		{info: "Working Area: Dhaka", want: "Unknown"},
		{info: "", want: "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractLocation(tt.info), tt.info)
	}
}

func testNormalizer() *specialty.Normalizer {
	return specialty.New(map[string][]string{
		"Cardiology": {"Cardiologist", "Heart Specialist"},
		"Medicine":   {"Medicine Specialist"},
	})
}

func TestToDoctor(t *testing.T) {
	d := ToDoctor(Listing{
		Title:          " Prof. Dr.  Rahman ",
		Specialty:      "heart  specialist",
		Info:           "Working Area: Dhaka, Mirpur",
		Clinic:         "Square Hospital",
		ClinicDetail:   " Room 4 ",
		Image:          "https://img/1.jpg",
		Qualifications: "MBBS,   FCPS",
		ProfileURL:     "https://example.com/rahman",
	}, testNormalizer())

	assert.Equal(t, "Prof. Dr. Rahman", d.Name)
	assert.Equal(t, "Cardiology", d.PrimarySpecialty)
	assert.Equal(t, []string{"Cardiology"}, d.Specialties)
	assert.Equal(t, "Dhaka, Mirpur", d.LocationText)
	assert.Equal(t, "Square Hospital Room 4", d.ClinicAddress)
	assert.Equal(t, "Qualifications: MBBS, FCPS\nProfile URL: https://example.com/rahman", d.Notes)
}

func TestToDoctor_Defaults(t *testing.T) {
	d := ToDoctor(Listing{Specialty: "Astrologer"}, testNormalizer())
	assert.Equal(t, "No Name Provided", d.Name)
	assert.Equal(t, specialty.Fallback, d.PrimarySpecialty)
	assert.Equal(t, "Unknown", d.LocationText)

	d = ToDoctor(Listing{}, testNormalizer())
	assert.Equal(t, specialty.Fallback, d.PrimarySpecialty)
}

type captureRepo struct {
	doctor.Repository
	replaced []doctor.Doctor
}

func (c *captureRepo) ReplaceAll(ctx context.Context, ds []doctor.Doctor) error {
	c.replaced = ds
	return nil
}

func TestLoader_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"Title":"Dr. A","mb2":"Cardiologist","Info":"Working Area: Dhaka, Uttara"},
		{"Title":"Dr. B","mb2":"Medicine Specialist"},
		{"Title":"Dr. C","mb2":"Dentist"}
	]`), 0o644))

	repo := &captureRepo{}
	n, err := NewLoader(repo, testNormalizer(), zap.NewNop()).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, repo.replaced, 3)
	assert.Equal(t, "Cardiology", repo.replaced[0].PrimarySpecialty)
	assert.Equal(t, "Medicine", repo.replaced[1].PrimarySpecialty)
	assert.Equal(t, "Others", repo.replaced[2].PrimarySpecialty)
}

func TestLoader_RunErrors(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(&captureRepo{}, testNormalizer(), zap.NewNop())

	_, err := loader.Run(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o644))
	_, err = loader.Run(context.Background(), bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	_, err = loader.Run(context.Background(), empty)
	assert.ErrorIs(t, err, ErrEmptyListing)
}
