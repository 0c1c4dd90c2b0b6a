package registry_test

import (
	"context"
	"testing"

	registry "github.com/farmlot/go-registry"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropsServiceCreate(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	alice := registerFarmer(t, stack, "alice@example.com")
	bob := registerFarmer(t, stack, "bob@example.com")
	aliceClaims := claimsFor(t, stack, alice.Token)

	t.Run("farmer records a crop on their own profile", func(t *testing.T) {
		crop, err := stack.crops.Create(ctx, aliceClaims, registry.CropInput{
			Name:     "Maize",
			Type:     registry.CropTypeCereals,
			Quantity: 120,
		})
		require.NoError(t, err)
		assert.Equal(t, alice.Identity.Farmer.ID, crop.FarmerID)
		assert.Equal(t, registry.DefaultCropUnit, crop.Unit)
	})

	t.Run("farmer cannot record for another profile", func(t *testing.T) {
		crop, err := stack.crops.Create(ctx, aliceClaims, registry.CropInput{
			FarmerID: bob.Identity.Farmer.ID,
			Name:     "Tomato",
			Type:     registry.CropTypeVegetables,
			Quantity: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, alice.Identity.Farmer.ID, crop.FarmerID,
			"record is pinned to the caller's own profile")
	})

	t.Run("admin records for a named farmer", func(t *testing.T) {
		crop, err := stack.crops.Create(ctx, adminClaims(), registry.CropInput{
			FarmerID: bob.Identity.Farmer.ID,
			Name:     "Cassava",
			Type:     registry.CropTypeTubers,
			Quantity: 55,
			Unit:     "tons",
		})
		require.NoError(t, err)
		assert.Equal(t, bob.Identity.Farmer.ID, crop.FarmerID)
		assert.Equal(t, "tons", crop.Unit)
	})

	t.Run("admin must name a farmer", func(t *testing.T) {
		_, err := stack.crops.Create(ctx, adminClaims(), registry.CropInput{
			Name:     "Orphan",
			Type:     registry.CropTypeOther,
			Quantity: 1,
		})
		assert.Error(t, err)
	})

	t.Run("unknown farmer id", func(t *testing.T) {
		_, err := stack.crops.Create(ctx, adminClaims(), registry.CropInput{
			FarmerID: uuid.New(),
			Name:     "Ghost",
			Type:     registry.CropTypeOther,
			Quantity: 1,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrNotFound))
	})

	t.Run("rejects unknown crop types", func(t *testing.T) {
		_, err := stack.crops.Create(ctx, aliceClaims, registry.CropInput{
			Name:     "Mystery",
			Type:     registry.CropType("minerals"),
			Quantity: 1,
		})
		assert.Error(t, err)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := stack.crops.Create(ctx, aliceClaims, registry.CropInput{
			Name:     "Debt",
			Type:     registry.CropTypeCereals,
			Quantity: -5,
		})
		assert.Error(t, err)
	})

	t.Run("anonymous caller denied", func(t *testing.T) {
		_, err := stack.crops.Create(ctx, nil, registry.CropInput{
			Name:     "Nobody",
			Type:     registry.CropTypeCereals,
			Quantity: 1,
		})
		require.Error(t, err)
		assert.True(t, registry.IsAuthzDenied(err))
	})
}

func TestCropsServiceOwnership(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	alice := registerFarmer(t, stack, "alice@example.com")
	bob := registerFarmer(t, stack, "bob@example.com")
	aliceClaims := claimsFor(t, stack, alice.Token)
	bobClaims := claimsFor(t, stack, bob.Token)

	aliceCrop := seedCrop(t, stack, alice.Identity.Farmer.ID, "Maize", registry.CropTypeCereals, 100)
	bobCrop := seedCrop(t, stack, bob.Identity.Farmer.ID, "Beans", registry.CropTypeLegumes, 30)

	t.Run("owner reads their own record", func(t *testing.T) {
		crop, err := stack.crops.Get(ctx, aliceClaims, aliceCrop.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maize", crop.Name)
	})

	t.Run("cross tenant read denied", func(t *testing.T) {
		_, err := stack.crops.Get(ctx, aliceClaims, bobCrop.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrNotOwner))
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		crop, err := stack.crops.Get(ctx, adminClaims(), bobCrop.ID)
		require.NoError(t, err)
		assert.Equal(t, "Beans", crop.Name)
	})

	t.Run("missing record reads as not found even for non owners", func(t *testing.T) {
		_, err := stack.crops.Get(ctx, aliceClaims, uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrNotFound))
	})

	t.Run("cross tenant update denied", func(t *testing.T) {
		name := "Stolen"
		_, err := stack.crops.Update(ctx, bobClaims, aliceCrop.ID, registry.CropUpdate{Name: &name})
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrNotOwner))
	})

	t.Run("owner updates their record", func(t *testing.T) {
		quantity := 140.0
		crop, err := stack.crops.Update(ctx, aliceClaims, aliceCrop.ID, registry.CropUpdate{Quantity: &quantity})
		require.NoError(t, err)
		assert.Equal(t, 140.0, crop.Quantity)
		assert.Equal(t, "Maize", crop.Name, "unset fields keep their value")
	})

	t.Run("cross tenant delete denied", func(t *testing.T) {
		err := stack.crops.Delete(ctx, bobClaims, aliceCrop.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrNotOwner))
	})

	t.Run("owner deletes their record", func(t *testing.T) {
		require.NoError(t, stack.crops.Delete(ctx, bobClaims, bobCrop.ID))

		_, err := stack.crops.Get(ctx, bobClaims, bobCrop.ID)
		assert.True(t, errors.Is(err, registry.ErrNotFound))
	})
}

func TestCropsServiceListAndStats(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	alice := registerFarmer(t, stack, "alice@example.com")
	bob := registerFarmer(t, stack, "bob@example.com")
	aliceClaims := claimsFor(t, stack, alice.Token)

	seedCrop(t, stack, alice.Identity.Farmer.ID, "Maize", registry.CropTypeCereals, 100)
	seedCrop(t, stack, alice.Identity.Farmer.ID, "Wheat", registry.CropTypeCereals, 80)
	seedCrop(t, stack, bob.Identity.Farmer.ID, "Beans", registry.CropTypeLegumes, 30)

	t.Run("farmer list is scoped to their profile", func(t *testing.T) {
		crops, err := stack.crops.List(ctx, aliceClaims)
		require.NoError(t, err)
		require.Len(t, crops, 2)
		for _, crop := range crops {
			assert.Equal(t, alice.Identity.Farmer.ID, crop.FarmerID)
		}
	})

	t.Run("admin list sees every record", func(t *testing.T) {
		crops, err := stack.crops.List(ctx, adminClaims())
		require.NoError(t, err)
		assert.Len(t, crops, 3)
	})

	t.Run("farmer stats cover only their records", func(t *testing.T) {
		stats, err := stack.crops.Stats(ctx, aliceClaims)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
		require.Len(t, stats.ByType, 1)
		assert.Equal(t, registry.CropTypeCereals, stats.ByType[0].Type)
		assert.Equal(t, 2, stats.ByType[0].Count)
	})

	t.Run("admin stats aggregate across tenants", func(t *testing.T) {
		stats, err := stack.crops.Stats(ctx, adminClaims())
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Len(t, stats.ByType, 2)
	})
}
