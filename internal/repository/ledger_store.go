package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/community-bot/internal/domain"
)

// LedgerStore persists the engagement ledger as one flat userID-keyed document
// that is rewritten wholesale on every save.
type LedgerStore interface {
	Load(ctx context.Context) (map[string]domain.EngagementRecord, error)
	Save(ctx context.Context, records map[string]domain.EngagementRecord) error
}

// FileLedgerStore keeps the ledger in a JSON file.
type FileLedgerStore struct {
	path string
}

// NewFileLedgerStore builds a store rooted at path.
func NewFileLedgerStore(path string) *FileLedgerStore {
	return &FileLedgerStore{path: path}
}

// Load reads the file; a missing file is an empty ledger.
func (s *FileLedgerStore) Load(ctx context.Context) (map[string]domain.EngagementRecord, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]domain.EngagementRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(raw) == 0 {
		return map[string]domain.EngagementRecord{}, nil
	}
	records := map[string]domain.EngagementRecord{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	for userID, record := range records {
		record.UserID = userID
		records[userID] = record
	}
	return records, nil
}

// Save overwrites the file through a sibling temp file and rename.
func (s *FileLedgerStore) Save(ctx context.Context, records map[string]domain.EngagementRecord) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// DefaultLedgerKey is the Redis hash holding the ledger.
const DefaultLedgerKey = "engagement:ledger"

// RedisLedgerStore keeps the ledger in a Redis hash, one field per user.
type RedisLedgerStore struct {
	client *redis.Client
	key    string
}

// NewRedisLedgerStore builds a store on the given hash key.
func NewRedisLedgerStore(client *redis.Client, key string) *RedisLedgerStore {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &RedisLedgerStore{client: client, key: key}
}

// Load reads every field of the hash; an absent key is an empty ledger.
func (s *RedisLedgerStore) Load(ctx context.Context) (map[string]domain.EngagementRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("hgetall ledger: %w", err)
	}
	records := make(map[string]domain.EngagementRecord, len(fields))
	for userID, raw := range fields {
		var record domain.EngagementRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", userID, err)
		}
		record.UserID = userID
		records[userID] = record
	}
	return records, nil
}

// Save replaces the hash inside a MULTI/EXEC block.
func (s *RedisLedgerStore) Save(ctx context.Context, records map[string]domain.EngagementRecord) error {
	values := make(map[string]any, len(records))
	for userID, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode ledger entry %s: %w", userID, err)
		}
		values[userID] = string(raw)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
