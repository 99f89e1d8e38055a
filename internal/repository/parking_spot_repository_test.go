package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parkspot/internal/models"
)

// newMockRepository returns a repository backed by pgxmock.
func newMockRepository(t *testing.T) (ParkingSpotRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewParkingSpotRepository(mock), mock
}

func spotRows() *pgxmock.Rows {
	return pgxmock.NewRows(parkingSpotColumns)
}

var registered = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

func TestSave_InsertAssignsID(t *testing.T) {
	repo, mock := newMockRepository(t)

	spot := &models.ParkingSpot{
		ParkingSpotNumber: "A1",
		LicensePlateCar:   "ABC123",
		BrandCar:          "Fiat",
		ModelCar:          "Uno",
		ColorCar:          "Red",
		Apartment:         "101",
		Block:             "B",
		RegistrationDate:  registered,
	}

	mock.ExpectQuery(`INSERT INTO parking_spots .* RETURNING id`).
		WithArgs("A1", "ABC123", "Fiat", "Uno", "Red", "101", "B", registered).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	saved, err := repo.Save(context.Background(), spot)

	require.NoError(t, err)
	assert.Equal(t, int64(42), saved.ID)
	assert.Equal(t, registered, saved.RegistrationDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_InsertStampsMissingRegistrationDate(t *testing.T) {
	repo, mock := newMockRepository(t)

	spot := &models.ParkingSpot{ParkingSpotNumber: "A1", LicensePlateCar: "ABC123", Apartment: "101", Block: "B"}

	mock.ExpectQuery(`INSERT INTO parking_spots`).
		WithArgs("A1", "ABC123", "", "", "", "101", "B", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	before := time.Now().UTC()
	saved, err := repo.Save(context.Background(), spot)

	require.NoError(t, err)
	assert.False(t, saved.RegistrationDate.Before(before))
	assert.Equal(t, time.UTC, saved.RegistrationDate.Location())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_InsertUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "license plate", constraint: constraintLicensePlate, want: ErrDuplicateLicensePlate},
		{name: "spot number", constraint: constraintSpotNumber, want: ErrDuplicateSpotNumber},
		{name: "apartment and block", constraint: constraintApartmentBlock, want: ErrDuplicateApartmentBlock},
		{name: "unknown constraint", constraint: "some_other_key", want: ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectQuery(`INSERT INTO parking_spots`).
				WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: tt.constraint})

			_, err := repo.Save(context.Background(), &models.ParkingSpot{RegistrationDate: registered})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrDuplicate)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSave_UpdateKeepsRegistrationDate(t *testing.T) {
	repo, mock := newMockRepository(t)

	spot := &models.ParkingSpot{
		ID:                7,
		ParkingSpotNumber: "C9",
		LicensePlateCar:   "XYZ999",
		BrandCar:          "VW",
		ModelCar:          "Gol",
		ColorCar:          "Blue",
		Apartment:         "202",
		Block:             "D",
		RegistrationDate:  registered,
	}

	// registration_date is not part of the SET list
	mock.ExpectExec(`UPDATE parking_spots SET parking_spot_number = \$1, license_plate_car = \$2, brand_car = \$3, model_car = \$4, color_car = \$5, apartment = \$6, block = \$7 WHERE id = \$8`).
		WithArgs("C9", "XYZ999", "VW", "Gol", "Blue", "202", "D", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	saved, err := repo.Save(context.Background(), spot)

	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.ID)
	assert.Equal(t, registered, saved.RegistrationDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE parking_spots`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := repo.Save(context.Background(), &models.ParkingSpot{ID: 99})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UpdateUniqueViolation(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE parking_spots`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintSpotNumber})

	_, err := repo.Save(context.Background(), &models.ParkingSpot{ID: 3})

	assert.ErrorIs(t, err, ErrDuplicateSpotNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_Nil(t *testing.T) {
	repo, _ := newMockRepository(t)

	_, err := repo.Save(context.Background(), nil)
	assert.Error(t, err)
}

func TestExistsQueries(t *testing.T) {
	tests := []struct {
		name  string
		query string
		args  []interface{}
		call  func(repo ParkingSpotRepository) (bool, error)
		found bool
	}{
		{
			name:  "license plate taken",
			query: `SELECT EXISTS \(.*FROM parking_spots WHERE license_plate_car = \$1`,
			args:  []interface{}{"ABC123"},
			call: func(repo ParkingSpotRepository) (bool, error) {
				return repo.ExistsByLicensePlate(context.Background(), "ABC123")
			},
			found: true,
		},
		{
			name:  "spot number free",
			query: `SELECT EXISTS \(.*FROM parking_spots WHERE parking_spot_number = \$1`,
			args:  []interface{}{"A1"},
			call: func(repo ParkingSpotRepository) (bool, error) {
				return repo.ExistsBySpotNumber(context.Background(), "A1")
			},
			found: false,
		},
		{
			name:  "apartment and block taken",
			query: `SELECT EXISTS \(.*FROM parking_spots WHERE apartment = \$1 AND block = \$2`,
			args:  []interface{}{"101", "B"},
			call: func(repo ParkingSpotRepository) (bool, error) {
				return repo.ExistsByApartmentAndBlock(context.Background(), "101", "B")
			},
			found: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectQuery(tt.query).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.found))

			found, err := tt.call(repo)

			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExists_DatabaseError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("connection reset"))

	_, err := repo.ExistsByLicensePlate(context.Background(), "ABC123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFindByID_Found(t *testing.T) {
	repo, mock := newMockRepository(t)

	local := registered.In(time.FixedZone("BRT", -3*60*60))
	mock.ExpectQuery(`SELECT id, .* FROM parking_spots WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(spotRows().AddRow(int64(5), "A1", "ABC123", "Fiat", "Uno", "Red", "101", "B", local))

	spot, err := repo.FindByID(context.Background(), 5)

	require.NoError(t, err)
	require.NotNil(t, spot)
	assert.Equal(t, int64(5), spot.ID)
	assert.Equal(t, "ABC123", spot.LicensePlateCar)
	assert.Equal(t, time.UTC, spot.RegistrationDate.Location())
	assert.True(t, registered.Equal(spot.RegistrationDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM parking_spots WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	spot, err := repo.FindByID(context.Background(), 404)

	assert.NoError(t, err)
	assert.Nil(t, spot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_DefaultPage(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM parking_spots`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`FROM parking_spots ORDER BY id ASC LIMIT 10 OFFSET 0`).
		WillReturnRows(spotRows().
			AddRow(int64(1), "A1", "ABC123", "Fiat", "Uno", "Red", "101", "B", registered).
			AddRow(int64(2), "A2", "DEF456", "VW", "Gol", "Blue", "102", "C", registered))

	page, err := repo.FindAll(context.Background(), models.DefaultPageRequest())

	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, int64(1), page.Content[0].ID)
	assert.Equal(t, int64(2), page.Content[1].ID)
	assert.Equal(t, int64(2), page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, "id,ASC", page.Sort)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_SortedWithTieBreaker(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM parking_spots`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(30)))
	mock.ExpectQuery(`ORDER BY parking_spot_number DESC, id ASC LIMIT 5 OFFSET 10`).
		WillReturnRows(spotRows())

	req := models.PageRequest{Sort: models.SortByParkingSpotNumber, Direction: models.SortDesc, Page: 2, Size: 5}
	page, err := repo.FindAll(context.Background(), req)

	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.NotNil(t, page.Content)
	assert.Equal(t, 6, page.TotalPages)
	assert.Equal(t, "parking_spot_number,DESC", page.Sort)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_RejectsUnknownSort(t *testing.T) {
	repo, mock := newMockRepository(t)

	req := models.DefaultPageRequest()
	req.Sort = "id; DROP TABLE parking_spots"

	_, err := repo.FindAll(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidSort)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_RejectsOverflowingOffset(t *testing.T) {
	repo, mock := newMockRepository(t)

	req := models.PageRequest{Sort: models.SortByID, Direction: models.SortAsc, Page: math.MaxInt / 50, Size: 100}
	require.Negative(t, req.Offset())

	page, err := repo.FindAll(context.Background(), req)

	assert.Nil(t, page)
	assert.ErrorIs(t, err, ErrInvalidPage)
	// Nothing may reach the store
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Run("deletes existing row", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(`DELETE FROM parking_spots WHERE id = \$1`).
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err := repo.Delete(context.Background(), &models.ParkingSpot{ID: 5})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(`DELETE FROM parking_spots`).
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(context.Background(), &models.ParkingSpot{ID: 5})

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
