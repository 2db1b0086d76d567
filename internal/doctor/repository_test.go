package doctor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var doctorColumns = []string{"id", "name", "primary_specialty", "specialties", "location_text", "clinic_address", "profile_image", "notes"}

type RepositoryTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo Repository
}

func (s *RepositoryTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)
	s.repo = NewRepository(s.db)
}

func (s *RepositoryTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RepositoryTestSuite) TestListBySpecialties() {
	s.mock.ExpectQuery(`FROM doctors WHERE primary_specialty = ANY\(\$1\) ORDER BY id LIMIT \$2`).
		WithArgs(sqlmock.AnyArg(), 6).
		WillReturnRows(sqlmock.NewRows(doctorColumns).
			AddRow(1, "Dr. Rahman", "Cardiology", []byte(`["Cardiology"]`), "Dhaka, Dhanmondi", "Square Hospital", "", "").
			AddRow(2, "Dr. Akter", "Pulmonology", []byte(`["Pulmonology"]`), "Dhaka, Mirpur", "", "", ""))

	ds, err := s.repo.ListBySpecialties(context.Background(), []string{"Cardiology", "Pulmonology"}, 6)
	s.Require().NoError(err)
	s.Require().Len(ds, 2)
	s.Equal("Dr. Rahman", ds[0].Name)
	s.Equal([]string{"Cardiology"}, ds[0].Specialties)
	s.Equal("Dhaka, Mirpur", ds[1].LocationText)
}

func (s *RepositoryTestSuite) TestGetByID_NotFound() {
	s.mock.ExpectQuery(`FROM doctors WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(doctorColumns))

	_, err := s.repo.GetByID(context.Background(), 9)
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestGetByIDs_EmptySkipsQuery() {
	ds, err := s.repo.GetByIDs(context.Background(), nil)
	s.NoError(err)
	s.Empty(ds)
}

func (s *RepositoryTestSuite) TestSearch_AllFilters() {
	s.mock.ExpectQuery(`FROM doctors WHERE name ILIKE \$1 AND primary_specialty = \$2 AND location_text ILIKE \$3 ORDER BY name`).
		WithArgs("%rah%", "Cardiology", "%dhaka%").
		WillReturnRows(sqlmock.NewRows(doctorColumns).
			AddRow(1, "Dr. Rahman", "Cardiology", nil, "Dhaka, Dhanmondi", "", "", ""))

	ds, err := s.repo.Search(context.Background(), SearchFilter{Name: "rah", Specialty: "Cardiology", Location: "dhaka"})
	s.Require().NoError(err)
	s.Len(ds, 1)
	s.Nil(ds[0].Specialties)
}

func (s *RepositoryTestSuite) TestSearch_NoFilters() {
	s.mock.ExpectQuery(`FROM doctors ORDER BY name`).
		WillReturnRows(sqlmock.NewRows(doctorColumns))

	ds, err := s.repo.Search(context.Background(), SearchFilter{})
	s.NoError(err)
	s.NotNil(ds)
	s.Empty(ds)
}

func (s *RepositoryTestSuite) TestReplaceAll() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`DELETE FROM doctors`).WillReturnResult(sqlmock.NewResult(0, 40))
	s.mock.ExpectExec(`INSERT INTO doctors`).
		WithArgs("Dr. Rahman", "Cardiology", []byte(`["Cardiology"]`), "Dhaka, Dhanmondi", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec(`INSERT INTO doctors`).
		WithArgs("Dr. Akter", "Others", []byte(`["Others"]`), "Unknown", "", "", "").
		WillReturnResult(sqlmock.NewResult(2, 1))
	s.mock.ExpectCommit()

	err := s.repo.ReplaceAll(context.Background(), []Doctor{
		{Name: "Dr. Rahman", PrimarySpecialty: "Cardiology", Specialties: []string{"Cardiology"}, LocationText: "Dhaka, Dhanmondi"},
		{Name: "Dr. Akter", PrimarySpecialty: "Others", Specialties: []string{"Others"}, LocationText: "Unknown"},
	})
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestReplaceAll_RollsBackOnInsertFailure() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`DELETE FROM doctors`).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(`INSERT INTO doctors`).WillReturnError(errors.New("disk full"))
	s.mock.ExpectRollback()

	err := s.repo.ReplaceAll(context.Background(), []Doctor{{Name: "Dr. X", PrimarySpecialty: "Others"}})
	s.ErrorContains(err, "disk full")
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
