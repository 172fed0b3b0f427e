package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, 24*time.Hour), mr
}

func sampleLines() domain.Lines {
	return domain.Lines{
		{ProductID: "prod-1", ProductName: "Dry food 2kg", UnitPrice: 4500, Quantity: 2, MaxQuantity: 5, GroupID: "rex", GroupLabel: "Rex"},
		{ProductID: "prod-2", ProductName: "Blanket", UnitPrice: 2500, Quantity: 1},
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestStore_Load_Absent(t *testing.T) {
	store, _ := setupTestStore(t)

	lines, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestStore_Load_RoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))

	lines, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "prod-1", lines[0].ProductID)
	assert.Equal(t, "rex", lines[0].GroupID)
	assert.Equal(t, 5, lines[0].MaxQuantity)
	assert.Equal(t, "prod-2", lines[1].ProductID)
}

func TestStore_Load_CorruptJSON(t *testing.T) {
	store, mr := setupTestStore(t)

	require.NoError(t, mr.Set("cart:lines:sess-bad", "{{not-json"))

	lines, err := store.Load(context.Background(), "sess-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal snapshot")
	assert.Empty(t, lines, "corruption degrades to an empty cart")
}

func TestStore_Load_Expired_DeletesBothKeys(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	data, err := json.Marshal(sampleLines())
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:lines:sess-1", string(data)))
	stale := time.Now().UTC().Add(-25 * time.Hour).Format(time.RFC3339Nano)
	require.NoError(t, mr.Set("cart:saved_at:sess-1", stale))

	lines, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.False(t, mr.Exists("cart:lines:sess-1"))
	assert.False(t, mr.Exists("cart:saved_at:sess-1"))
}

func TestStore_Load_UnparsableMarkerKeepsCart(t *testing.T) {
	store, mr := setupTestStore(t)

	data, err := json.Marshal(sampleLines())
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:lines:sess-1", string(data)))
	require.NoError(t, mr.Set("cart:saved_at:sess-1", "garbage"))

	lines, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, lines, 2, "unparsable marker must not destroy data")
}

// ---------------------------------------------------------------------------
// Save / marker lifecycle
// ---------------------------------------------------------------------------

func TestStore_Save_SetsMarkerOnFirstItem(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))

	assert.True(t, mr.Exists("cart:lines:sess-1"))
	marker, err := mr.Get("cart:saved_at:sess-1")
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339Nano, marker)
	assert.NoError(t, err)
}

func TestStore_Save_MarkerUnchangedWhileNonEmpty(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))
	first, err := mr.Get("cart:saved_at:sess-1")
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	more := append(sampleLines(), domain.CartLine{ProductID: "prod-3", Quantity: 1})
	require.NoError(t, store.Save(ctx, "sess-1", more))

	second, err := mr.Get("cart:saved_at:sess-1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "marker anchors to the first item, not last activity")
}

func TestStore_Save_EmptyCartRemovesMarker(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))
	require.NoError(t, store.Save(ctx, "sess-1", domain.Lines{}))

	assert.False(t, mr.Exists("cart:lines:sess-1"))
	assert.False(t, mr.Exists("cart:saved_at:sess-1"))
}

func TestStore_Save_MarkerResetAfterEmptyTransition(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))
	first, err := mr.Get("cart:saved_at:sess-1")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "sess-1", nil))

	store.now = func() time.Time { return time.Now().Add(time.Minute) }
	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))
	second, err := mr.Get("cart:saved_at:sess-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "empty transition re-anchors the window")
}

func TestStore_Clear(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", sampleLines()))
	require.NoError(t, store.Clear(ctx, "sess-1"))

	assert.False(t, mr.Exists("cart:lines:sess-1"))
	assert.False(t, mr.Exists("cart:saved_at:sess-1"))
}
