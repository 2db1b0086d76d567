package diagnosis

import (
	"context"

	"github.com/google/uuid"

	"medmatch/internal/contract"
	"medmatch/internal/doctor"
	"medmatch/internal/query"
	"medmatch/internal/report"
)

// RecentLimit is how many past queries the history list shows.
const RecentLimit = 5

type Records interface {
	GetForAccount(ctx context.Context, accountID, id uuid.UUID) (*query.Record, error)
	Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]query.Record, error)
}

type DoctorLookup interface {
	GetByIDs(ctx context.Context, ids []int64) ([]doctor.Doctor, error)
}

// Archive reads stored queries back into displayable entries.
type Archive struct {
	records Records
	doctors DoctorLookup
}

func NewArchive(records Records, doctors DoctorLookup) *Archive {
	return &Archive{records: records, doctors: doctors}
}

func (a *Archive) Recent(ctx context.Context, accountID uuid.UUID) ([]query.Record, error) {
	return a.records.Recent(ctx, accountID, RecentLimit)
}

// Detail re-parses the stored reply and reloads the doctors matched at the
// time, so later directory changes do not alter the entry.
func (a *Archive) Detail(ctx context.Context, accountID, id uuid.UUID) (*Entry, error) {
	rec, err := a.records.GetForAccount(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Record: *rec, Doctors: []doctor.Doctor{}}
	if p, _, err := contract.Decode(rec.RawResponse, nil); err == nil {
		entry.Finding = FindingFromPayload(p)
	}
	if len(rec.MatchedDoctorIDs) > 0 {
		ds, err := a.doctors.GetByIDs(ctx, rec.MatchedDoctorIDs)
		if err != nil {
			return nil, err
		}
		entry.Doctors = ds
	}
	return entry, nil
}

// Document is the printable form of an entry.
func (e *Entry) Document() report.Document {
	return report.Document{
		QueryID:        e.Record.ID.String(),
		CreatedAt:      e.Record.CreatedAt,
		InputType:      e.Record.InputType,
		UserText:       e.Record.UserText,
		Summary:        e.Finding.Summary,
		Findings:       e.Finding.Findings,
		PossibleCauses: e.Finding.PossibleCauses,
		Specialties:    e.Finding.SuggestedSpecialties,
		Confidence:     e.Finding.Confidence,
		NextSteps:      e.Finding.NextSteps,
		Doctors:        e.Doctors,
	}
}
