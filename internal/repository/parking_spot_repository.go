package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stwalsh4118/parkspot/internal/models"
)

// Repository-level errors
var (
	ErrNotFound    = errors.New("parking spot not found")
	ErrDuplicate   = errors.New("already assigned")
	ErrInvalidSort = errors.New("unsupported sort field")
	ErrInvalidPage = errors.New("invalid page request")

	ErrDuplicateLicensePlate   = fmt.Errorf("license plate %w", ErrDuplicate)
	ErrDuplicateSpotNumber     = fmt.Errorf("parking spot number %w", ErrDuplicate)
	ErrDuplicateApartmentBlock = fmt.Errorf("apartment and block %w", ErrDuplicate)
)

// Unique constraint names declared by the parking_spots migration.
const (
	constraintLicensePlate   = "parking_spots_license_plate_car_key"
	constraintSpotNumber     = "parking_spots_parking_spot_number_key"
	constraintApartmentBlock = "parking_spots_apartment_block_key"

	pgUniqueViolation = "23505"
)

var parkingSpotsTable = models.ParkingSpot{}.TableName()

var parkingSpotColumns = []string{
	"id",
	"parking_spot_number",
	"license_plate_car",
	"brand_car",
	"model_car",
	"color_car",
	"apartment",
	"block",
	"registration_date",
}

var sortColumns = map[models.SortField]string{
	models.SortByID:                "id",
	models.SortByParkingSpotNumber: "parking_spot_number",
	models.SortByLicensePlateCar:   "license_plate_car",
	models.SortByBrandCar:          "brand_car",
	models.SortByModelCar:          "model_car",
	models.SortByColorCar:          "color_car",
	models.SortByApartment:         "apartment",
	models.SortByBlock:             "block",
	models.SortByRegistrationDate:  "registration_date",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Querier is the subset of *pgxpool.Pool (and pgx.Tx) the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ParkingSpotRepository defines the data access operations for parking spot
// assignments. Every write is a single statement, so each call commits or
// fails as a whole.
type ParkingSpotRepository interface {
	// Save inserts spot when its ID is zero and updates it otherwise.
	// Updates never touch the registration date.
	// Returns ErrDuplicate* when a unique constraint rejects the write and
	// ErrNotFound when an update matches no row.
	Save(ctx context.Context, spot *models.ParkingSpot) (*models.ParkingSpot, error)

	ExistsByLicensePlate(ctx context.Context, plate string) (bool, error)
	ExistsBySpotNumber(ctx context.Context, number string) (bool, error)
	ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error)

	// FindAll returns one page ordered by req.Sort, with id as tie-breaker.
	FindAll(ctx context.Context, req models.PageRequest) (*models.Page[models.ParkingSpot], error)

	// FindByID returns nil, nil if no parking spot has the given id.
	FindByID(ctx context.Context, id int64) (*models.ParkingSpot, error)

	// Delete removes spot. Returns ErrNotFound if it no longer exists.
	Delete(ctx context.Context, spot *models.ParkingSpot) error
}

type parkingSpotRepository struct {
	q Querier
}

// NewParkingSpotRepository creates a ParkingSpotRepository over q.
func NewParkingSpotRepository(q Querier) ParkingSpotRepository {
	return &parkingSpotRepository{q: q}
}

func (r *parkingSpotRepository) Save(ctx context.Context, spot *models.ParkingSpot) (*models.ParkingSpot, error) {
	if spot == nil {
		return nil, fmt.Errorf("save parking spot: spot is nil")
	}
	if spot.ID == 0 {
		return r.insert(ctx, spot)
	}
	return r.update(ctx, spot)
}

func (r *parkingSpotRepository) insert(ctx context.Context, spot *models.ParkingSpot) (*models.ParkingSpot, error) {
	if spot.RegistrationDate.IsZero() {
		spot.RegistrationDate = time.Now().UTC()
	}

	query, args, err := psql.Insert(parkingSpotsTable).
		Columns(parkingSpotColumns[1:]...).
		Values(
			spot.ParkingSpotNumber,
			spot.LicensePlateCar,
			spot.BrandCar,
			spot.ModelCar,
			spot.ColorCar,
			spot.Apartment,
			spot.Block,
			spot.RegistrationDate,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&spot.ID); err != nil {
		return nil, mapWriteError(err, "insert parking spot")
	}

	return spot, nil
}

func (r *parkingSpotRepository) update(ctx context.Context, spot *models.ParkingSpot) (*models.ParkingSpot, error) {
	query, args, err := psql.Update(parkingSpotsTable).
		Set("parking_spot_number", spot.ParkingSpotNumber).
		Set("license_plate_car", spot.LicensePlateCar).
		Set("brand_car", spot.BrandCar).
		Set("model_car", spot.ModelCar).
		Set("color_car", spot.ColorCar).
		Set("apartment", spot.Apartment).
		Set("block", spot.Block).
		Where(squirrel.Eq{"id": spot.ID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError(err, fmt.Sprintf("update parking spot %d", spot.ID))
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update parking spot %d: %w", spot.ID, ErrNotFound)
	}

	return spot, nil
}

func (r *parkingSpotRepository) ExistsByLicensePlate(ctx context.Context, plate string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"license_plate_car": plate})
}

func (r *parkingSpotRepository) ExistsBySpotNumber(ctx context.Context, number string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"parking_spot_number": number})
}

func (r *parkingSpotRepository) ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"apartment": apartment, "block": block})
}

func (r *parkingSpotRepository) exists(ctx context.Context, where squirrel.Eq) (bool, error) {
	query, args, err := psql.Select("1").
		From(parkingSpotsTable).
		Where(where).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var exists bool
	if err := r.q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check parking spot existence (%v): %w", where, err)
	}
	return exists, nil
}

func (r *parkingSpotRepository) FindAll(ctx context.Context, req models.PageRequest) (*models.Page[models.ParkingSpot], error) {
	column, ok := sortColumns[req.Sort]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, req.Sort)
	}
	if req.Page < 0 || req.Size < 1 || req.Offset() < 0 {
		return nil, fmt.Errorf("%w (page=%d, size=%d)", ErrInvalidPage, req.Page, req.Size)
	}

	countQuery, _, err := psql.Select("COUNT(*)").From(parkingSpotsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.q.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count parking spots: %w", err)
	}

	direction := models.SortAsc
	if req.Direction == models.SortDesc {
		direction = models.SortDesc
	}
	orderBy := []string{column + " " + string(direction)}
	if column != "id" {
		orderBy = append(orderBy, "id ASC")
	}

	query, args, err := psql.Select(parkingSpotColumns...).
		From(parkingSpotsTable).
		OrderBy(orderBy...).
		Limit(uint64(req.Size)).
		Offset(uint64(req.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list parking spots (page=%d, size=%d): %w", req.Page, req.Size, err)
	}
	defer rows.Close()

	spots := make([]models.ParkingSpot, 0, req.Size)
	for rows.Next() {
		spot, err := scanParkingSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parking spot row: %w", err)
		}
		spots = append(spots, *spot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parking spot rows: %w", err)
	}

	req.Direction = direction
	return models.NewPage(spots, req, total), nil
}

func (r *parkingSpotRepository) FindByID(ctx context.Context, id int64) (*models.ParkingSpot, error) {
	query, args, err := psql.Select(parkingSpotColumns...).
		From(parkingSpotsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find query: %w", err)
	}

	spot, err := scanParkingSpot(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find parking spot %d: %w", id, err)
	}
	return spot, nil
}

func (r *parkingSpotRepository) Delete(ctx context.Context, spot *models.ParkingSpot) error {
	if spot == nil {
		return fmt.Errorf("delete parking spot: spot is nil")
	}

	query, args, err := psql.Delete(parkingSpotsTable).
		Where(squirrel.Eq{"id": spot.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete parking spot %d: %w", spot.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete parking spot %d: %w", spot.ID, ErrNotFound)
	}
	return nil
}

func scanParkingSpot(row pgx.Row) (*models.ParkingSpot, error) {
	var spot models.ParkingSpot
	err := row.Scan(
		&spot.ID,
		&spot.ParkingSpotNumber,
		&spot.LicensePlateCar,
		&spot.BrandCar,
		&spot.ModelCar,
		&spot.ColorCar,
		&spot.Apartment,
		&spot.Block,
		&spot.RegistrationDate,
	)
	if err != nil {
		return nil, err
	}
	spot.RegistrationDate = spot.RegistrationDate.UTC()
	return &spot, nil
}

// mapWriteError turns unique violations into the matching ErrDuplicate*.
func mapWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintLicensePlate:
			return fmt.Errorf("%s: %w", op, ErrDuplicateLicensePlate)
		case constraintSpotNumber:
			return fmt.Errorf("%s: %w", op, ErrDuplicateSpotNumber)
		case constraintApartmentBlock:
			return fmt.Errorf("%s: %w", op, ErrDuplicateApartmentBlock)
		default:
			return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
