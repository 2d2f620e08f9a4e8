package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"smartparking/pkg/logger"
	"smartparking/pkg/model"

	"github.com/redis/go-redis/v9"
)

const (
	BoardKey      = "smartparking:board:active"
	GenerationKey = "smartparking:board:generation"
)

// BoardCache holds the list of active bookings the slot board is rendered
// from. It is a read-through cache: the store stays authoritative and every
// mutation invalidates the entry.
//
// Entries are stamped with the generation that was current when the reader
// missed. Invalidate bumps the generation, so a reader that loaded the store
// before a concurrent mutation writes back an entry that is already stale and
// is never served.
type BoardCache interface {
	// Get returns the cached bookings, or on a miss the generation to pass to
	// Set.
	Get(ctx context.Context) (bookings []*model.Booking, generation int64, ok bool)
	Set(ctx context.Context, generation int64, bookings []*model.Booking)
	Invalidate(ctx context.Context)
}

type boardEntry struct {
	Generation int64           `json:"generation"`
	Bookings   []cachedBooking `json:"bookings"`
}

type redisBoardCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisBoardCache(client *redis.Client, ttl time.Duration, log *logger.Logger) BoardCache {
	return &redisBoardCache{client: client, ttl: ttl, log: log}
}

// Get reports a miss on any Redis failure so the caller falls back to the
// store.
func (c *redisBoardCache) Get(ctx context.Context) ([]*model.Booking, int64, bool) {
	values, err := c.client.MGet(ctx, GenerationKey, BoardKey).Result()
	if err != nil {
		c.log.Warn("Board cache read failed", "error", err)
		return nil, 0, false
	}

	generation, err := parseGeneration(values[0])
	if err != nil {
		c.log.Warn("Board cache generation is corrupt", "error", err)
		return nil, 0, false
	}

	raw, ok := values[1].(string)
	if !ok {
		return nil, generation, false
	}
	var entry boardEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.log.Warn("Board cache entry is corrupt, dropping it", "error", err)
		c.client.Del(ctx, BoardKey)
		return nil, generation, false
	}
	if entry.Generation != generation {
		return nil, generation, false
	}
	return fromCached(entry.Bookings), generation, true
}

func (c *redisBoardCache) Set(ctx context.Context, generation int64, bookings []*model.Booking) {
	raw, err := json.Marshal(boardEntry{Generation: generation, Bookings: toCached(bookings)})
	if err != nil {
		c.log.Warn("Board cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, BoardKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Board cache write failed", "error", err)
	}
}

func (c *redisBoardCache) Invalidate(ctx context.Context) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey)
		pipe.Del(ctx, BoardKey)
		return nil
	})
	if err != nil {
		c.log.Warn("Board cache invalidation failed", "error", err)
	}
}

// parseGeneration reads the generation counter as returned by MGET. A missing
// counter is generation zero.
func parseGeneration(v any) (int64, error) {
	switch g := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(g, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected generation type %T", v)
	}
}

// cachedBooking exposes the fields model.Booking hides from JSON, which the
// board needs to compute expiry.
type cachedBooking struct {
	*model.Booking
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

func toCached(bookings []*model.Booking) []cachedBooking {
	out := make([]cachedBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, cachedBooking{Booking: b, StartMinute: b.StartMinute, EndMinute: b.EndMinute})
	}
	return out
}

func fromCached(cached []cachedBooking) []*model.Booking {
	out := make([]*model.Booking, 0, len(cached))
	for _, c := range cached {
		if c.Booking == nil {
			continue
		}
		b := *c.Booking
		b.StartMinute = c.StartMinute
		b.EndMinute = c.EndMinute
		out = append(out, &b)
	}
	return out
}

// MemoryBoardCache is an in-process BoardCache.
type MemoryBoardCache struct {
	mu         sync.Mutex
	bookings   []*model.Booking
	valid      bool
	generation int64

	Hits          int
	Invalidations int
}

func NewMemoryBoardCache() *MemoryBoardCache {
	return &MemoryBoardCache{}
}

func (c *MemoryBoardCache) Get(context.Context) ([]*model.Booking, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return nil, c.generation, false
	}
	c.Hits++
	return c.bookings, c.generation, true
}

// Set drops the write when the cache was invalidated after generation was
// handed out.
func (c *MemoryBoardCache) Set(_ context.Context, generation int64, bookings []*model.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.bookings = bookings
	c.valid = true
}

func (c *MemoryBoardCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bookings = nil
	c.valid = false
	c.generation++
	c.Invalidations++
}
