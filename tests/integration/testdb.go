// Package integration runs the sync engine against a real PostgreSQL
// database started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/infrastructure/config"
	"github.com/erp/wmssync/internal/infrastructure/migration"
	"github.com/erp/wmssync/internal/infrastructure/persistence"
	"github.com/erp/wmssync/internal/infrastructure/persistence/models"
)

const (
	testDBName     = "wmssync_test"
	testDBUser     = "postgres"
	testDBPassword = "admin123"
)

// TestDB represents a migrated test database
type TestDB struct {
	*persistence.Database
	Container testcontainers.Container
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container, applies the embedded migrations
// and connects the way the server does. The container is terminated when
// the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Driver:       "postgres",
		Host:         host,
		Port:         port.Int(),
		User:         testDBUser,
		Password:     testDBPassword,
		DBName:       testDBName,
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
	runMigrations(t, cfg.DSN())

	db, err := persistence.NewDatabase(cfg)
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{Database: db, Container: container, t: t}
}

// runMigrations uses its own connection: closing the migrator closes it.
func runMigrations(t *testing.T, dsn string) {
	t.Helper()

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
	require.NoError(t, m.Close())
}

// CreateChannel inserts a sales channel.
func (tdb *TestDB) CreateChannel(code, token string) models.ChannelModel {
	tdb.t.Helper()
	now := time.Now()
	ch := models.ChannelModel{ID: uuid.New(), Code: code, Token: token, CreatedAt: now, UpdatedAt: now}
	require.NoError(tdb.t, tdb.DB.Create(&ch).Error, "Failed to create channel")
	return ch
}

// CreateVariants inserts an enabled product with one enabled variant per SKU.
func (tdb *TestDB) CreateVariants(channelID uuid.UUID, stockOnHand, stockAllocated int, skus ...string) []models.VariantModel {
	tdb.t.Helper()
	now := time.Now()

	product := models.ProductModel{
		ID: uuid.New(), ChannelID: channelID, Name: fmt.Sprintf("Product %s", skus[0]), Enabled: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(tdb.t, tdb.DB.Omit("Variants", "FeaturedAsset").Create(&product).Error, "Failed to create product")

	variants := make([]models.VariantModel, 0, len(skus))
	for i, sku := range skus {
		variants = append(variants, models.VariantModel{
			ID: uuid.New(), ProductID: product.ID, ChannelID: channelID, SKU: sku, Name: sku,
			Enabled: true, Price: 1250, TaxRate: decimal.NewFromInt(21),
			StockOnHand: stockOnHand, StockAllocated: stockAllocated,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond), UpdatedAt: now,
		})
	}
	require.NoError(tdb.t, tdb.DB.Omit("Product", "FeaturedAsset").Create(&variants).Error, "Failed to create variants")
	return variants
}

// StockOnHand reads the stored stock of a variant.
func (tdb *TestDB) StockOnHand(variantID uuid.UUID) int {
	tdb.t.Helper()
	var v models.VariantModel
	require.NoError(tdb.t, tdb.DB.First(&v, "id = ?", variantID).Error)
	return v.StockOnHand
}
