package diagnosis

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"medmatch/internal/agent"
	"medmatch/internal/doctor"
	"medmatch/internal/query"
	"medmatch/internal/specialty"
)

// scriptedAI replays canned replies in order and records every request.
type scriptedAI struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests [][]agent.Message
}

func (s *scriptedAI) Complete(ctx context.Context, msgs []agent.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, msgs)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i >= len(s.replies) {
		return "", errors.New("no scripted reply")
	}
	return s.replies[i], nil
}

type memHistory struct {
	records []query.Record
	matched map[uuid.UUID][]int64
	saveErr error
}

func (m *memHistory) Save(ctx context.Context, rec *query.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	rec.ID = uuid.New()
	m.records = append(m.records, *rec)
	return nil
}

func (m *memHistory) SetMatchedDoctors(ctx context.Context, id uuid.UUID, ids []int64) error {
	if m.matched == nil {
		m.matched = map[uuid.UUID][]int64{}
	}
	m.matched[id] = ids
	return nil
}

func (m *memHistory) GetForAccount(ctx context.Context, accountID, id uuid.UUID) (*query.Record, error) {
	for _, r := range m.records {
		if r.ID == id && r.AccountID == accountID {
			r.MatchedDoctorIDs = m.matched[id]
			return &r, nil
		}
	}
	return nil, query.ErrNotFound
}

func (m *memHistory) Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]query.Record, error) {
	out := []query.Record{}
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].AccountID == accountID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

// directory is a doctor.Repository over a fixed slice that records the
// specialty sets it was queried with.
type directory struct {
	doctors []doctor.Doctor
	queried [][]string
	err     error
}

func (d *directory) ListBySpecialties(ctx context.Context, specialties []string, limit int) ([]doctor.Doctor, error) {
	d.queried = append(d.queried, specialties)
	if d.err != nil {
		return nil, d.err
	}
	out := []doctor.Doctor{}
	for _, doc := range d.doctors {
		for _, s := range specialties {
			if doc.PrimarySpecialty == s && len(out) < limit {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

func (d *directory) GetByID(ctx context.Context, id int64) (*doctor.Doctor, error) {
	for _, doc := range d.doctors {
		if doc.ID == id {
			return &doc, nil
		}
	}
	return nil, doctor.ErrNotFound
}

func (d *directory) GetByIDs(ctx context.Context, ids []int64) ([]doctor.Doctor, error) {
	out := []doctor.Doctor{}
	for _, id := range ids {
		if doc, err := d.GetByID(ctx, id); err == nil {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (d *directory) Search(ctx context.Context, f doctor.SearchFilter) ([]doctor.Doctor, error) {
	return d.doctors, nil
}

func (d *directory) ReplaceAll(ctx context.Context, ds []doctor.Doctor) error {
	d.doctors = ds
	return nil
}

func testSpecialties() *specialty.Normalizer {
	return specialty.New(map[string][]string{
		"Cardiology":  {"Cardiologist", "Heart Specialist"},
		"Pulmonology": {"Pulmonologist", "Chest Specialist"},
		"Neurology":   {"Neurologist"},
	})
}

func testDirectory() *directory {
	return &directory{doctors: []doctor.Doctor{
		{ID: 1, Name: "Dr. Rahman", PrimarySpecialty: "Cardiology"},
		{ID: 2, Name: "Dr. Akter", PrimarySpecialty: "Pulmonology"},
		{ID: 3, Name: "Dr. Hossain", PrimarySpecialty: "Neurology"},
	}}
}
