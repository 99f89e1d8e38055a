package models

import "strings"

// SortDirection orders a page of results.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection accepts asc/desc in any case. Anything else is ASC.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// SortField names a ParkingSpot attribute a list can be ordered by.
// Values match the json field names and the table columns.
type SortField string

const (
	SortByID                SortField = "id"
	SortByParkingSpotNumber SortField = "parking_spot_number"
	SortByLicensePlateCar   SortField = "license_plate_car"
	SortByBrandCar          SortField = "brand_car"
	SortByModelCar          SortField = "model_car"
	SortByColorCar          SortField = "color_car"
	SortByApartment         SortField = "apartment"
	SortByBlock             SortField = "block"
	SortByRegistrationDate  SortField = "registration_date"
)

var sortFields = map[SortField]struct{}{
	SortByID:                {},
	SortByParkingSpotNumber: {},
	SortByLicensePlateCar:   {},
	SortByBrandCar:          {},
	SortByModelCar:          {},
	SortByColorCar:          {},
	SortByApartment:         {},
	SortByBlock:             {},
	SortByRegistrationDate:  {},
}

// Valid reports whether f is a sortable field.
func (f SortField) Valid() bool {
	_, ok := sortFields[f]
	return ok
}

// Pagination defaults applied when a request leaves them unset.
const (
	DefaultPage     = 0
	DefaultPageSize = 10
)

// PageRequest selects a page of records. Page is zero-based.
type PageRequest struct {
	Sort      SortField
	Direction SortDirection
	Page      int
	Size      int
}

// DefaultPageRequest returns the first page of 10 ordered by id ascending.
func DefaultPageRequest() PageRequest {
	return PageRequest{
		Sort:      SortByID,
		Direction: SortAsc,
		Page:      DefaultPage,
		Size:      DefaultPageSize,
	}
}

// Offset is the number of records skipped before this page.
func (r PageRequest) Offset() int {
	return r.Page * r.Size
}

// SortString renders the ordering as "field,DIR".
func (r PageRequest) SortString() string {
	return string(r.Sort) + "," + string(r.Direction)
}

// Page is a bounded, ordered slice of a collection.
type Page[T any] struct {
	Content          []T    `json:"content"`
	Sort             string `json:"sort"`
	TotalElements    int64  `json:"total_elements"`
	Page             int    `json:"page"`
	Size             int    `json:"size"`
	TotalPages       int    `json:"total_pages"`
	NumberOfElements int    `json:"number_of_elements"`
	First            bool   `json:"first"`
	Last             bool   `json:"last"`
}

// NewPage builds a Page for content fetched with req out of total records.
func NewPage[T any](content []T, req PageRequest, total int64) *Page[T] {
	if content == nil {
		content = []T{}
	}

	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}

	return &Page[T]{
		Content:          content,
		Sort:             req.SortString(),
		TotalElements:    total,
		Page:             req.Page,
		Size:             req.Size,
		TotalPages:       totalPages,
		NumberOfElements: len(content),
		First:            req.Page == 0,
		Last:             req.Page >= totalPages-1,
	}
}
