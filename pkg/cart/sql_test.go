package cart_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/cart"
	"github.com/shashiranjanraj/storefront/pkg/database"
)

func TestSQLRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, cart.Migrate(db))

	s := cart.New(ctx, cart.NewSQLPersister(db, "session-1"))
	require.NoError(t, s.AddItem(item("a", "10.50"), 2))
	require.NoError(t, s.AddItem(item("b", "15.00"), 1))
	require.NoError(t, s.AddItem(item("c", "3.25"), 5))
	s.SetQuantity("c", 1)

	restored := cart.New(ctx, cart.NewSQLPersister(db, "session-1"))
	want, got := s.Lines(), restored.Lines()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ItemID, got[i].ItemID)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price))
	}
	assert.Equal(t, "39.25", restored.Total().String())

	assert.Empty(t, cart.New(ctx, cart.NewSQLPersister(db, "session-2")).Lines())

	restored.Clear()
	assert.Empty(t, cart.New(ctx, cart.NewSQLPersister(db, "session-1")).Lines())
}
