package ledger

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf("copybot:test:%d", time.Now().UnixNano())
	store, err := NewRedisStore(ctx, url, key)
	require.NoError(t, err)
	defer store.Close()
	defer store.client.Del(context.Background(), key)

	raw, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)

	l := New(store, zaptest.NewLogger(t))
	require.NoError(t, l.Upsert(ctx, "MintA", d("10"), d("2")))
	require.NoError(t, l.Upsert(ctx, "MintA", d("20"), d("1")))

	p, ok, err := l.Get(ctx, "MintA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Quantity.Equal(d("3")))

	require.NoError(t, store.Save(ctx, []byte("{broken")))
	_, err = l.GetAll(ctx)
	assert.ErrorIs(t, err, ErrStorageCorrupt)

	dst, err := store.Quarantine(ctx)
	require.NoError(t, err)
	defer store.client.Del(context.Background(), dst)
}
