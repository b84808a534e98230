package seeders_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

func init() { logger.Discard() }

func TestDemoSeedLoadsAsMenu(t *testing.T) {
	ctx := context.Background()
	db := backend.NewMemoryStore()
	disk := storage.NewLocalDisk(t.TempDir(), "http://localhost:8080/storage")

	var out bytes.Buffer
	require.NoError(t, seeders.RunAll(ctx, seeders.Target{DB: db, Disk: disk, BusinessID: "demo"}, &out))
	assert.Contains(t, out.String(), "Running seeder: menu")

	ok, err := disk.Exists(ctx, "images/burger.svg")
	require.NoError(t, err)
	assert.True(t, ok)

	conns := backend.NewManager(backend.DialFunc(func(context.Context, backend.Config) (*backend.Handle, error) {
		return &backend.Handle{DB: db}, nil
	}))
	repo := menu.NewRepository(conns, backend.Config{MongoURI: "mongodb://localhost:27017", Database: "shop"}, menu.DefaultPolicy())

	m, err := repo.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo Bistro", m.Business.Name)
	require.Len(t, m.Categories, 3)
	assert.Equal(t, []string{"mains", "drinks", "desserts"}, []string{m.Categories[0].ID, m.Categories[1].ID, m.Categories[2].ID})

	coffee, ok := m.Item("coffee")
	require.True(t, ok)
	assert.Equal(t, "2.8", coffee.Price.String())

	featured := menu.FeaturedItems(m.Categories)
	require.Len(t, featured, 2)
}

func TestRunAllNeedsBusinessID(t *testing.T) {
	err := seeders.RunAll(context.Background(), seeders.Target{DB: backend.NewMemoryStore()}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"business", "menu", "images"}, seeders.Names())
}
