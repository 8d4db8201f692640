package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/propertyhub/internal/testsupport"
)

func validListing() CreatePropertyInput {
	return CreatePropertyInput{
		Name:        "Maple Court 4B",
		Type:        domain.PropertyApartment,
		AddressLine: "12 Maple Court",
		City:        "Springfield",
		Bedrooms:    2,
		Bathrooms:   1.5,
		MonthlyRent: 145000,
	}
}

func TestPropertyService_Create(t *testing.T) {
	store := testsupport.NewMemoryStore()
	runner := testsupport.NewRunner(store)
	s := NewPropertyService(runner, store, nil, nil, logger.Discard())
	ctx := context.Background()

	landlord := testsupport.SeedUser(t, store, "landlord@example.com", "Password123", domain.RoleLandlord, domain.StatusActive)
	other := testsupport.SeedUser(t, store, "other@example.com", "Password123", domain.RoleLandlord, domain.StatusActive)
	manager := testsupport.SeedUser(t, store, "pm@example.com", "Password123", domain.RolePropertyManager, domain.StatusActive)
	tenant := testsupport.SeedUser(t, store, "tenant@example.com", "Password123", domain.RoleTenant, domain.StatusActive)

	p, err := s.Create(ctx, landlord.Actor(), validListing())
	require.NoError(t, err)
	assert.Equal(t, landlord.ID, p.OwnerID)
	assert.True(t, p.IsAvailable)
	assert.NotEmpty(t, p.ID)

	in := validListing()
	in.OwnerID = other.ID
	_, err = s.Create(ctx, landlord.Actor(), in)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden), "landlords list only their own units")

	p, err = s.Create(ctx, manager.Actor(), in)
	require.NoError(t, err)
	assert.Equal(t, other.ID, p.OwnerID)

	_, err = s.Create(ctx, tenant.Actor(), validListing())
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	assert.Equal(t, 2, store.PropertyCount())
}

func TestPropertyService_CreateValidation(t *testing.T) {
	store := testsupport.NewMemoryStore()
	runner := testsupport.NewRunner(store)
	s := NewPropertyService(runner, store, nil, nil, logger.Discard())
	landlord := testsupport.SeedUser(t, store, "landlord@example.com", "Password123", domain.RoleLandlord, domain.StatusActive)

	mutations := map[string]func(*CreatePropertyInput){
		"no name":       func(in *CreatePropertyInput) { in.Name = " " },
		"bad type":      func(in *CreatePropertyInput) { in.Type = "castle" },
		"no city":       func(in *CreatePropertyInput) { in.City = "" },
		"negative beds": func(in *CreatePropertyInput) { in.Bedrooms = -1 },
		"negative rent": func(in *CreatePropertyInput) { in.MonthlyRent = -5 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := validListing()
			mutate(&in)
			_, err := s.Create(context.Background(), landlord.Actor(), in)
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
		})
	}
	assert.Zero(t, store.PropertyCount())
}

func TestPropertyService_ListAndGet(t *testing.T) {
	store := testsupport.NewMemoryStore()
	runner := testsupport.NewRunner(store)
	s := NewPropertyService(runner, store, nil, nil, logger.Discard())
	ctx := context.Background()

	landlord := testsupport.SeedUser(t, store, "landlord@example.com", "Password123", domain.RoleLandlord, domain.StatusActive)
	tenant := testsupport.SeedUser(t, store, "tenant@example.com", "Password123", domain.RoleTenant, domain.StatusActive)

	first, err := s.Create(ctx, landlord.Actor(), validListing())
	require.NoError(t, err)

	unavailable := false
	in := validListing()
	in.City = "Shelbyville"
	in.IsAvailable = &unavailable
	_, err = s.Create(ctx, landlord.Actor(), in)
	require.NoError(t, err)

	all, err := s.List(ctx, tenant.Actor(), domain.PropertyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := s.List(ctx, tenant.Actor(), domain.PropertyFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, first.ID, available[0].ID)

	inCity, err := s.List(ctx, tenant.Actor(), domain.PropertyFilter{City: "shelbyville"})
	require.NoError(t, err)
	assert.Len(t, inCity, 1)

	got, err := s.Get(ctx, tenant.Actor(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maple Court 4B", got.Name)

	_, err = s.Get(ctx, tenant.Actor(), "missing")
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)
}
