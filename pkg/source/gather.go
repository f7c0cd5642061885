package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single adapter call.
	DefaultTimeout = 8 * time.Second

	// MaxRecords is the per-source cap applied after every search, whatever
	// limit the adapter was configured with.
	MaxRecords = 50
)

type outcome struct {
	idx     int
	records []Record
}

// Gather queries every source concurrently and waits for all of them.
// A source that fails, panics or runs past its timeout contributes an empty
// result; Gather itself never fails. If ctx ends first, the results that
// completed so far are returned. Every queried source has an entry in the
// returned map, even when empty.
func Gather(ctx context.Context, sources []Source, keywords []string, timeout time.Duration, logger *zap.Logger) map[SourceType][]Record {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Buffered so late sources never block after an early return.
	ch := make(chan outcome, len(sources))
	for i, src := range sources {
		go func() {
			ch <- outcome{idx: i, records: searchOne(ctx, src, keywords, timeout, logger)}
		}()
	}

	slots := make([][]Record, len(sources))
	collect(ctx, ch, slots, logger)

	results := make(map[SourceType][]Record, len(sources))
	for i, src := range sources {
		results[src.Name()] = append(results[src.Name()], slots[i]...)
	}
	return results
}

// collect fills slots from ch until every source reported or ctx ends.
func collect(ctx context.Context, ch <-chan outcome, slots [][]Record, logger *zap.Logger) {
wait:
	for pending := len(slots); pending > 0; pending-- {
		select {
		case o := <-ch:
			slots[o.idx] = o.records
		case <-ctx.Done():
			logger.Warn("run deadline reached, scoring partial results",
				zap.Int("pending", pending), zap.Error(ctx.Err()))
			break wait
		}
	}

	// Sources that finished alongside the deadline are still usable.
	for {
		select {
		case o := <-ch:
			slots[o.idx] = o.records
		default:
			return
		}
	}
}

func searchOne(ctx context.Context, src Source, keywords []string, timeout time.Duration, logger *zap.Logger) (records []Record) {
	log := logger.With(zap.String("source", string(src.Name())))

	defer func() {
		if r := recover(); r != nil {
			log.Warn("source panicked", zap.Any("panic", r))
			records = nil
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	recs, err := src.Search(sctx, keywords)
	if err != nil {
		if sctx.Err() != nil {
			err = fmt.Errorf("%w: %w", sctx.Err(), err)
		}
		log.Warn("source search failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	log.Debug("source search done", zap.Int("count", len(recs)), zap.Duration("elapsed", time.Since(start)))
	return capRecords(recs, MaxRecords)
}
