package doctor

// Doctor is a directory entry. PrimarySpecialty always holds a canonical
// specialty label; ingestion normalizes it before insert.
type Doctor struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	PrimarySpecialty string   `json:"primary_specialty"`
	Specialties      []string `json:"specialties"`
	LocationText     string   `json:"location_text"`
	ClinicAddress    string   `json:"clinic_address"`
	ProfileImage     string   `json:"profile_image"`
	Notes            string   `json:"notes"`
}

// SearchFilter narrows a directory listing. Empty fields are ignored.
type SearchFilter struct {
	Name      string `validate:"max=200"`
	Specialty string `validate:"max=200"`
	Location  string `validate:"max=200"`
}

// IDs returns the ids of ds in order.
func IDs(ds []Doctor) []int64 {
	ids := make([]int64, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.ID)
	}
	return ids
}
