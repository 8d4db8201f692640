package domain

import (
	"context"
	"time"
)

// PropertyType describes what kind of unit is listed.
type PropertyType string

const (
	PropertyApartment  PropertyType = "apartment"
	PropertyHouse      PropertyType = "house"
	PropertyCondo      PropertyType = "condo"
	PropertyCommercial PropertyType = "commercial"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyApartment, PropertyHouse, PropertyCondo, PropertyCommercial:
		return true
	}
	return false
}

// Property is a rentable unit owned by a landlord.
type Property struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Name        string       `json:"name"`
	Type        PropertyType `json:"property_type"`
	AddressLine string       `json:"address_line"`
	City        string       `json:"city"`
	State       string       `json:"state"`
	PostalCode  string       `json:"postal_code"`
	Bedrooms    int          `json:"bedrooms"`
	Bathrooms   float64      `json:"bathrooms"`
	MonthlyRent int64        `json:"monthly_rent_cents"`
	IsAvailable bool         `json:"is_available"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PropertyFilter narrows List results. An empty OwnerID lists every owner.
type PropertyFilter struct {
	OwnerID       string
	City          string
	AvailableOnly bool
	Limit         int
	Offset        int
}

// PropertyRepository is the data access contract for properties.
type PropertyRepository interface {
	Create(ctx context.Context, property *Property) error
	GetByID(ctx context.Context, id string) (*Property, error)
	List(ctx context.Context, filter PropertyFilter) ([]*Property, error)
}
