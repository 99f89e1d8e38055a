package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stwalsh4118/parkspot/internal/config"
	"github.com/stwalsh4118/parkspot/internal/logger"
	"github.com/stwalsh4118/parkspot/internal/models"
	"github.com/stwalsh4118/parkspot/internal/repository"
)

// Service-level errors
var (
	ErrParkingSpotNotFound = errors.New("parking spot not found")
	ErrInvalidParkingSpot  = errors.New("invalid parking spot")

	// Conflicts, in the order Create checks them.
	ErrLicensePlateInUse        = errors.New("licence car exists")
	ErrSpotNumberInUse          = errors.New("parking spot in use")
	ErrApartmentBlockRegistered = errors.New("apartment and block already registered")
)

// IsConflict reports whether err is one of the uniqueness conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrLicensePlateInUse) ||
		errors.Is(err, ErrSpotNumberInUse) ||
		errors.Is(err, ErrApartmentBlockRegistered)
}

// ParkingSpotService defines the business operations on parking spot
// assignments.
type ParkingSpotService interface {
	// Create registers a new assignment stamped with the current UTC time.
	// Returns ErrInvalidParkingSpot for blank fields and the first matching
	// conflict out of ErrLicensePlateInUse, ErrSpotNumberInUse and
	// ErrApartmentBlockRegistered.
	Create(ctx context.Context, input *models.ParkingSpot) (*models.ParkingSpot, error)

	// List returns one page. Out of range paging values are clamped and an
	// unknown sort field falls back to id.
	List(ctx context.Context, req models.PageRequest) (*models.Page[models.ParkingSpot], error)

	// Get returns ErrParkingSpotNotFound if no assignment has the id.
	Get(ctx context.Context, id int64) (*models.ParkingSpot, error)

	// Update replaces every mutable field of an existing assignment.
	// Values that change are checked against the same conflicts as Create.
	Update(ctx context.Context, id int64, input *models.ParkingSpot) (*models.ParkingSpot, error)

	// Delete returns ErrParkingSpotNotFound if no assignment has the id.
	Delete(ctx context.Context, id int64) error
}

type parkingSpotService struct {
	repo       repository.ParkingSpotRepository
	log        *logger.Logger
	pagination config.PaginationConfig
	now        func() time.Time
}

// NewParkingSpotService creates a new instance of ParkingSpotService.
func NewParkingSpotService(repo repository.ParkingSpotRepository, log *logger.Logger, pagination config.PaginationConfig) ParkingSpotService {
	if pagination.DefaultSize < 1 {
		pagination.DefaultSize = models.DefaultPageSize
	}
	if pagination.MaxSize < pagination.DefaultSize {
		pagination.MaxSize = pagination.DefaultSize
	}

	return &parkingSpotService{
		repo:       repo,
		log:        log,
		pagination: pagination,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *parkingSpotService) Create(ctx context.Context, input *models.ParkingSpot) (*models.ParkingSpot, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	if err := s.checkLicensePlate(ctx, input.LicensePlateCar); err != nil {
		return nil, err
	}
	if err := s.checkSpotNumber(ctx, input.ParkingSpotNumber); err != nil {
		return nil, err
	}
	if err := s.checkApartmentBlock(ctx, input.Apartment, input.Block); err != nil {
		return nil, err
	}

	spot := &models.ParkingSpot{}
	spot.ApplyUpdate(input)
	spot.RegistrationDate = s.now()

	saved, err := s.repo.Save(ctx, spot)
	if err != nil {
		return nil, s.mapWriteError("create", err, spotFields(spot))
	}

	s.log.Info("Parking spot registered", map[string]interface{}{
		"parking_spot_id":     saved.ID,
		"parking_spot_number": saved.ParkingSpotNumber,
		"license_plate_car":   saved.LicensePlateCar,
	})

	return saved, nil
}

func (s *parkingSpotService) List(ctx context.Context, req models.PageRequest) (*models.Page[models.ParkingSpot], error) {
	req = s.normalize(req)

	page, err := s.repo.FindAll(ctx, req)
	if err != nil {
		s.log.Error("Failed to list parking spots", err, map[string]interface{}{
			"page": req.Page,
			"size": req.Size,
			"sort": req.SortString(),
		})
		return nil, fmt.Errorf("failed to list parking spots: %w", err)
	}

	s.log.Debug("Listed parking spots", map[string]interface{}{
		"page":  req.Page,
		"size":  req.Size,
		"sort":  req.SortString(),
		"count": len(page.Content),
		"total": page.TotalElements,
	})

	return page, nil
}

func (s *parkingSpotService) Get(ctx context.Context, id int64) (*models.ParkingSpot, error) {
	return s.find(ctx, id)
}

func (s *parkingSpotService) Update(ctx context.Context, id int64, input *models.ParkingSpot) (*models.ParkingSpot, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validate(input); err != nil {
		return nil, err
	}

	if input.LicensePlateCar != existing.LicensePlateCar {
		if err := s.checkLicensePlate(ctx, input.LicensePlateCar); err != nil {
			return nil, err
		}
	}
	if input.ParkingSpotNumber != existing.ParkingSpotNumber {
		if err := s.checkSpotNumber(ctx, input.ParkingSpotNumber); err != nil {
			return nil, err
		}
	}
	if input.Apartment != existing.Apartment || input.Block != existing.Block {
		if err := s.checkApartmentBlock(ctx, input.Apartment, input.Block); err != nil {
			return nil, err
		}
	}

	existing.ApplyUpdate(input)

	saved, err := s.repo.Save(ctx, existing)
	if err != nil {
		return nil, s.mapWriteError("update", err, spotFields(existing))
	}

	s.log.Info("Parking spot updated", map[string]interface{}{
		"parking_spot_id": saved.ID,
	})

	return saved, nil
}

func (s *parkingSpotService) Delete(ctx context.Context, id int64) error {
	spot, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, spot); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParkingSpotNotFound
		}
		s.log.Error("Failed to delete parking spot", err, map[string]interface{}{
			"parking_spot_id": id,
		})
		return fmt.Errorf("failed to delete parking spot: %w", err)
	}

	s.log.Info("Parking spot deleted", map[string]interface{}{
		"parking_spot_id": id,
	})

	return nil
}

func (s *parkingSpotService) find(ctx context.Context, id int64) (*models.ParkingSpot, error) {
	spot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to query parking spot", err, map[string]interface{}{
			"parking_spot_id": id,
		})
		return nil, fmt.Errorf("failed to query parking spot: %w", err)
	}

	// Repository returns nil, nil when no row matches
	if spot == nil {
		s.log.Debug("Parking spot not found", map[string]interface{}{
			"parking_spot_id": id,
		})
		return nil, ErrParkingSpotNotFound
	}

	return spot, nil
}

func (s *parkingSpotService) validate(input *models.ParkingSpot) error {
	if input == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidParkingSpot)
	}
	if blank := input.BlankFields(); len(blank) > 0 {
		s.log.Warn("Blank parking spot fields", map[string]interface{}{
			"fields": blank,
		})
		return fmt.Errorf("%w: blank fields: %s", ErrInvalidParkingSpot, strings.Join(blank, ", "))
	}
	return nil
}

func (s *parkingSpotService) checkLicensePlate(ctx context.Context, plate string) error {
	exists, err := s.repo.ExistsByLicensePlate(ctx, plate)
	return s.conflictOrError(exists, err, ErrLicensePlateInUse, map[string]interface{}{
		"license_plate_car": plate,
	})
}

func (s *parkingSpotService) checkSpotNumber(ctx context.Context, number string) error {
	exists, err := s.repo.ExistsBySpotNumber(ctx, number)
	return s.conflictOrError(exists, err, ErrSpotNumberInUse, map[string]interface{}{
		"parking_spot_number": number,
	})
}

func (s *parkingSpotService) checkApartmentBlock(ctx context.Context, apartment, block string) error {
	exists, err := s.repo.ExistsByApartmentAndBlock(ctx, apartment, block)
	return s.conflictOrError(exists, err, ErrApartmentBlockRegistered, map[string]interface{}{
		"apartment": apartment,
		"block":     block,
	})
}

func (s *parkingSpotService) conflictOrError(exists bool, err error, conflict error, fields map[string]interface{}) error {
	if err != nil {
		s.log.Error("Failed to check parking spot uniqueness", err, fields)
		return fmt.Errorf("failed to check uniqueness: %w", err)
	}
	if exists {
		s.log.Warn("Parking spot conflict", mergeFields(fields, "reason", conflict.Error()))
		return conflict
	}
	return nil
}

// mapWriteError translates store-level duplicates, which only happen when a
// concurrent write wins the race past the existence checks.
func (s *parkingSpotService) mapWriteError(op string, err error, fields map[string]interface{}) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateLicensePlate):
		return ErrLicensePlateInUse
	case errors.Is(err, repository.ErrDuplicateSpotNumber):
		return ErrSpotNumberInUse
	case errors.Is(err, repository.ErrDuplicateApartmentBlock):
		return ErrApartmentBlockRegistered
	case errors.Is(err, repository.ErrNotFound):
		return ErrParkingSpotNotFound
	}

	s.log.Error("Failed to "+op+" parking spot", err, fields)
	return fmt.Errorf("failed to %s parking spot: %w", op, err)
}

func (s *parkingSpotService) normalize(req models.PageRequest) models.PageRequest {
	if req.Page < 0 {
		req.Page = 0
	}
	if req.Size < 1 {
		req.Size = s.pagination.DefaultSize
	}
	if req.Size > s.pagination.MaxSize {
		req.Size = s.pagination.MaxSize
	}
	// Page*Size must not overflow int to be usable as an OFFSET.
	if maxPage := math.MaxInt / req.Size; req.Page > maxPage {
		req.Page = maxPage
	}
	if req.Sort == "" {
		req.Sort = models.SortByID
	} else if !req.Sort.Valid() {
		s.log.Warn("Unknown sort field, falling back to id", map[string]interface{}{
			"sort": string(req.Sort),
		})
		req.Sort = models.SortByID
	}
	if req.Direction != models.SortDesc {
		req.Direction = models.SortAsc
	}
	return req
}

func spotFields(spot *models.ParkingSpot) map[string]interface{} {
	return map[string]interface{}{
		"parking_spot_id":     spot.ID,
		"parking_spot_number": spot.ParkingSpotNumber,
		"license_plate_car":   spot.LicensePlateCar,
	}
}

func mergeFields(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[key] = value
	return merged
}
