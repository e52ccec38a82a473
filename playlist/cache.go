package playlist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultCacheTTL = 3600 * time.Second

// FetchFunc loads a playlist's track titles from upstream.
type FetchFunc func(ctx context.Context) ([]string, error)

type cacheEntry struct {
	Titles   []string `json:"titles"`
	Hash     string   `json:"hash"`
	CachedAt int64    `json:"cached_at"`
}

// TrackCache bounds upstream call volume during dedup checks. Entries carry a
// content hash so a refetch that finds unchanged contents only extends the
// entry's lifetime instead of rewriting it. Entries are kept in redis past
// their logical TTL (twice as long) so the stale hash is still available for
// comparison after expiry.
type TrackCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewTrackCache(client *redis.Client, prefix string, ttl time.Duration) *TrackCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &TrackCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Tracks returns the title set of a playlist, from cache while the entry is
// fresh, otherwise via fetch with hash-based invalidation.
func (tc *TrackCache) Tracks(ctx context.Context, playlistID, userID string, fetch FetchFunc) (map[string]struct{}, error) {
	key := tc.key(playlistID, userID)

	entry, found, err := tc.get(ctx, key)
	if err != nil {
		return nil, err
	}

	now := tc.now().UTC()
	if found && now.Unix()-entry.CachedAt < int64(tc.ttl.Seconds()) {
		return toSet(entry.Titles), nil
	}

	titles, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	hash := ContentHash(titles)

	if found && entry.Hash == hash {
		// Contents did not drift: keep the stored set, just extend validity.
		entry.CachedAt = now.Unix()
		if err := tc.put(ctx, key, entry); err != nil {
			return nil, err
		}
		return toSet(entry.Titles), nil
	}

	fresh := &cacheEntry{
		Titles:   sortedCopy(titles),
		Hash:     hash,
		CachedAt: now.Unix(),
	}
	if err := tc.put(ctx, key, fresh); err != nil {
		return nil, err
	}

	return toSet(titles), nil
}

// Invalidate drops the entry so the next lookup refetches upstream.
func (tc *TrackCache) Invalidate(ctx context.Context, playlistID, userID string) error {
	err := tc.client.Del(ctx, tc.key(playlistID, userID)).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return nil
}

func (tc *TrackCache) key(playlistID, userID string) string {
	return fmt.Sprintf("%s:%s:%s:tracks", tc.prefix, playlistID, userID)
}

func (tc *TrackCache) get(ctx context.Context, key string) (*cacheEntry, bool, error) {
	result, err := tc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(result), &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return &entry, true, nil
}

func (tc *TrackCache) put(ctx context.Context, key string, entry *cacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := tc.client.Set(ctx, key, data, 2*tc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return nil
}

// ContentHash is a stable hash over the title set: sorted, newline-delimited,
// sha256. Order of the input does not matter.
func ContentHash(titles []string) string {
	sorted := sortedCopy(titles)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

func sortedCopy(titles []string) []string {
	out := make([]string, len(titles))
	copy(out, titles)
	sort.Strings(out)
	return out
}

func toSet(titles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		set[title] = struct{}{}
	}
	return set
}
