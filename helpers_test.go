package registry_test

import (
	"context"
	"database/sql"
	"testing"

	registry "github.com/farmlot/go-registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	_, err = sqldb.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	err = db.ResetModel(ctx,
		(*registry.User)(nil),
		(*registry.Farmer)(nil),
		(*registry.Crop)(nil),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testConfig() registry.SimpleConfig {
	return registry.SimpleConfig{
		SigningKey:      "test-signing-key",
		TokenExpiration: 1,
		Issuer:          "registry-test",
		Audience:        []string{"registry"},
	}
}

type testStack struct {
	db      *bun.DB
	repo    registry.RepositoryManager
	auther  *registry.Auther
	crops   *registry.CropsService
	farmers *registry.FarmersService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := setupTestDB(t)
	repo := registry.NewRepositoryManager(db)
	repo.MustValidate()

	auther := registry.NewAuthenticator(repo, testConfig())

	return &testStack{
		db:      db,
		repo:    repo,
		auther:  auther,
		crops:   registry.NewCropsService(repo),
		farmers: registry.NewFarmersService(repo),
	}
}

func registerFarmer(t *testing.T, stack *testStack, email string) *registry.AuthResult {
	t.Helper()

	result, err := stack.auther.Register(context.Background(), registry.RegisterMessage{
		Email:     email,
		Password:  "plow-the-fields",
		FirstName: "Test",
		LastName:  "Farmer",
		FarmSize:  12.5,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Identity.Farmer)

	return result
}

func claimsFor(t *testing.T, stack *testStack, token string) registry.AuthClaims {
	t.Helper()

	claims, err := stack.auther.AuthenticateToken(token)
	require.NoError(t, err)

	return claims
}

func seedCrop(t *testing.T, stack *testStack, farmerID uuid.UUID, name string, cropType registry.CropType, quantity float64) *registry.Crop {
	t.Helper()

	record, err := stack.repo.Crops().Create(context.Background(), &registry.Crop{
		FarmerID: farmerID,
		Name:     name,
		Type:     cropType,
		Quantity: quantity,
	})
	require.NoError(t, err)

	return record
}
