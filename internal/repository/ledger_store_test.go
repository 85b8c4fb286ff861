package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/community-bot/internal/domain"
)

func TestFileLedgerStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileLedgerStore(filepath.Join(t.TempDir(), "absent.json"))
	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestFileLedgerStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "levels.json")
	store := NewFileLedgerStore(path)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]domain.EngagementRecord{
		"u1": {UserID: "u1", XP: 40, Level: 2},
	}))
	require.NoError(t, store.Save(ctx, map[string]domain.EngagementRecord{
		"u1": {UserID: "u1", XP: 0, Level: 3},
		"u2": {UserID: "u2", XP: 7, Level: 0},
	}))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]domain.EngagementRecord{
		"u1": {UserID: "u1", XP: 0, Level: 3},
		"u2": {UserID: "u2", XP: 7, Level: 0},
	}, records)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"level": 3`)
	require.NotContains(t, string(raw), "UserID")
}

func TestFileLedgerStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileLedgerStore(path).Load(context.Background())
	require.Error(t, err)
}

func newRedisLedger(t *testing.T) (*RedisLedgerStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedgerStore(client, ""), mr
}

func TestRedisLedgerStoreMissingKeyIsEmpty(t *testing.T) {
	store, _ := newRedisLedger(t)
	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRedisLedgerStoreSaveReplacesHash(t *testing.T) {
	store, mr := newRedisLedger(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]domain.EngagementRecord{
		"u1": {UserID: "u1", XP: 40, Level: 2},
		"u2": {UserID: "u2", XP: 7},
	}))
	require.NoError(t, store.Save(ctx, map[string]domain.EngagementRecord{
		"u1": {UserID: "u1", XP: 0, Level: 3},
	}))

	fields, err := mr.HKeys(DefaultLedgerKey)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, fields)
	require.JSONEq(t, `{"xp":0,"level":3}`, mr.HGet(DefaultLedgerKey, "u1"))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]domain.EngagementRecord{
		"u1": {UserID: "u1", XP: 0, Level: 3},
	}, records)
}

func TestRedisLedgerStoreEmptySaveClearsHash(t *testing.T) {
	store, mr := newRedisLedger(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]domain.EngagementRecord{"u1": {UserID: "u1", XP: 1}}))
	require.NoError(t, store.Save(ctx, map[string]domain.EngagementRecord{}))
	require.False(t, mr.Exists(DefaultLedgerKey))
}

func TestRedisLedgerStoreReadsExistingEntries(t *testing.T) {
	store, mr := newRedisLedger(t)
	mr.HSet(DefaultLedgerKey, "u9", `{"xp":12,"level":4}`)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.EngagementRecord{UserID: "u9", XP: 12, Level: 4}, records["u9"])
}

func TestRedisLedgerStoreRejectsCorruptEntry(t *testing.T) {
	store, mr := newRedisLedger(t)
	mr.HSet(DefaultLedgerKey, "u9", "{not json")

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, "u9")
}

func TestNewTicketArchiveRepositoryNilPool(t *testing.T) {
	require.Nil(t, NewTicketArchiveRepository(nil))
}
