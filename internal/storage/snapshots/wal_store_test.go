package snapshots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALStoreSaveAndAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	payloads := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	for i, p := range payloads {
		idx, err := store.Save(base.Add(time.Duration(i)*time.Second), []byte(p))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), idx)
	}
	assert.Equal(t, uint64(3), store.CurrentIndex())

	records, err := store.After(1, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(2), records[0].Index)
	assert.Equal(t, uint64(3), records[1].Index)
	assert.JSONEq(t, `{"n":2}`, string(records[0].Payload))
	assert.True(t, records[1].CapturedAt.Equal(base.Add(2*time.Second)))

	limited, err := store.After(0, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, uint64(1), limited[0].Index)

	none, err := store.After(3, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALStoreLatest(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		_, err := store.Save(time.Now(), []byte(`{}`))
		require.NoError(t, err)
	}

	latest, err := store.Latest(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(4), latest[0].Index)
	assert.Equal(t, uint64(5), latest[1].Index)

	all, err := store.Latest(50)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestWALStoreRejectsInvalidPayload(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Save(time.Now(), []byte(`{broken`))
	require.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
}

func TestNilStore(t *testing.T) {
	var store *WALStore
	assert.Zero(t, store.CurrentIndex())
	_, err := store.After(0, 0)
	assert.Error(t, err)
	assert.Error(t, store.Close())
}
