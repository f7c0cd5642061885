package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/elonfeng/realitycheck/internal/store"
	"github.com/elonfeng/realitycheck/pkg/source"
)

type entry struct {
	records []source.Record
	stored  time.Time
}

// Tiered keeps recent source responses in an in-memory LRU and, when a
// store is given, in SQLite so separate runs can reuse them within the TTL.
type Tiered struct {
	mem    *lru.Cache[string, entry]
	disk   store.Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New creates a tiered cache. disk may be nil for a memory-only cache.
func New(size int, ttl time.Duration, disk store.Store, logger *zap.Logger) (*Tiered, error) {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mem, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Tiered{
		mem:    mem,
		disk:   disk,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (t *Tiered) Get(ctx context.Context, key string) ([]source.Record, bool) {
	if e, ok := t.mem.Get(key); ok {
		if t.now().Sub(e.stored) <= t.ttl {
			return cloneRecords(e.records), true
		}
		t.mem.Remove(key)
	}

	if t.disk == nil {
		return nil, false
	}

	q, err := t.disk.GetQuery(ctx, key, t.now().Add(-t.ttl))
	if err != nil {
		t.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if q == nil {
		return nil, false
	}
	t.mem.Add(key, entry{records: cloneRecords(q.Records), stored: q.FetchedAt})
	return q.Records, true
}

func (t *Tiered) Put(ctx context.Context, key string, records []source.Record) error {
	t.mem.Add(key, entry{records: cloneRecords(records), stored: t.now()})
	if t.disk == nil {
		return nil
	}
	return t.disk.PutQuery(ctx, key, sourceOf(key), records)
}

// Len returns the number of in-memory entries.
func (t *Tiered) Len() int {
	return t.mem.Len()
}

func sourceOf(key string) source.SourceType {
	if i := strings.Index(key, "|"); i > 0 {
		return source.SourceType(key[:i])
	}
	return source.SourceType(key)
}

func cloneRecords(in []source.Record) []source.Record {
	if in == nil {
		return nil
	}
	return append([]source.Record(nil), in...)
}
