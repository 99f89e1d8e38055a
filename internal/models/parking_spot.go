package models

import (
	"strings"
	"time"
)

// ParkingSpot assigns a parking spot to a vehicle owned by an apartment/block.
// ID and RegistrationDate are owned by the store and never change after
// creation.
type ParkingSpot struct {
	RegistrationDate  time.Time `json:"registration_date"`
	ParkingSpotNumber string    `json:"parking_spot_number"`
	LicensePlateCar   string    `json:"license_plate_car"`
	BrandCar          string    `json:"brand_car"`
	ModelCar          string    `json:"model_car"`
	ColorCar          string    `json:"color_car"`
	Apartment         string    `json:"apartment"`
	Block             string    `json:"block"`
	ID                int64     `json:"id"`
}

// TableName is the table backing ParkingSpot.
func (ParkingSpot) TableName() string {
	return "parking_spots"
}

// ApplyUpdate overwrites every mutable field with the values from src.
// ID and RegistrationDate are left untouched.
func (p *ParkingSpot) ApplyUpdate(src *ParkingSpot) {
	p.ParkingSpotNumber = src.ParkingSpotNumber
	p.LicensePlateCar = src.LicensePlateCar
	p.BrandCar = src.BrandCar
	p.ModelCar = src.ModelCar
	p.ColorCar = src.ColorCar
	p.Apartment = src.Apartment
	p.Block = src.Block
}

// BlankFields returns the json names of required fields that are empty
// or whitespace only.
func (p *ParkingSpot) BlankFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"parking_spot_number", p.ParkingSpotNumber},
		{"license_plate_car", p.LicensePlateCar},
		{"brand_car", p.BrandCar},
		{"model_car", p.ModelCar},
		{"color_car", p.ColorCar},
		{"apartment", p.Apartment},
		{"block", p.Block},
	}

	var blank []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			blank = append(blank, f.name)
		}
	}
	return blank
}
