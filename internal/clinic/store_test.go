package clinic

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, testDefaults()), mr
}

func TestStoreGetReturnsDefaults(t *testing.T) {
	store, mr := newTestStore(t)

	s, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "clinic-1", s.ClinicID)
	assert.Equal(t, "+03:00", s.UTCOffset)
	assert.False(t, mr.Exists("clinic:settings:clinic-1"))
}

func TestStoreSetAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	s, err := store.Get(ctx)
	require.NoError(t, err)
	s.UTCOffset = "-05:00"
	s.BusinessHours.Sunday = &DayHours{Open: "10:00", Close: "14:00"}
	require.NoError(t, store.Set(ctx, s))
	assert.True(t, mr.Exists("clinic:settings:clinic-1"))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "-05:00", got.UTCOffset)
	require.NotNil(t, got.BusinessHours.Sunday)
	assert.Equal(t, "14:00", got.BusinessHours.Sunday.Close)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStoreSetRejectsInvalid(t *testing.T) {
	store, mr := newTestStore(t)

	s := DefaultSettings(testDefaults())
	s.UTCOffset = "nowhere"
	assert.ErrorIs(t, store.Set(context.Background(), s), ErrInvalidSettings)
	assert.False(t, mr.Exists("clinic:settings:clinic-1"))
}

func TestStoreRecordBackupRun(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 2, 0, 5, 0, time.FixedZone("+03:00", 3*3600))

	require.NoError(t, store.RecordBackupRun(ctx, at))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.Backup.LastRunAt)
	assert.True(t, got.Backup.LastRunAt.Equal(at))
}

func TestStoreGetCorruptDocument(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("clinic:settings:clinic-1", "{not json"))

	_, err := store.Get(context.Background())
	assert.Error(t, err)
}
