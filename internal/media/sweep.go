package media

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/storage"
)

// DefaultSweepGrace keeps objects younger than this out of a sweep so that an
// upload between its object write and its row insert is never collected.
const DefaultSweepGrace = time.Hour

type SweepReport struct {
	Scanned  int `json:"scanned"`
	Orphaned int `json:"orphaned"`
	Removed  int `json:"removed"`
	Failed   int `json:"failed"`
}

// SweepOrphans removes stored images no metadata row points at, such as
// those left behind by a failed compensating delete.
func (m *Manager) SweepOrphans(ctx context.Context, grace time.Duration) (*SweepReport, error) {
	const op = "media.SweepOrphans"
	if grace <= 0 {
		grace = DefaultSweepGrace
	}

	objects, err := m.store.List(ctx, storage.ImagePrefix+"/")
	if err != nil {
		return nil, apperr.E(apperr.KindRemoteQuery, op, err)
	}
	urls, err := m.repo.ListURLs(ctx)
	if err != nil {
		return nil, apperr.E(apperr.KindRemoteQuery, op, err)
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := storage.KeyFromPublicURL(m.store.Bucket(), u); ok {
			referenced[key] = struct{}{}
		}
	}

	cutoff := m.now().Add(-grace)
	var orphans []string
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.UpdatedAt.After(cutoff) {
			continue
		}
		orphans = append(orphans, obj.Key)
	}

	report := &SweepReport{Scanned: len(objects), Orphaned: len(orphans)}
	if len(orphans) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(m.sweepWorkers)
	if err != nil {
		return nil, apperr.E(apperr.KindStorageDelete, op, err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		removed int64
		failed  int64
	)
	for _, key := range orphans {
		key := key
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := m.store.Remove(ctx, key); err != nil {
				atomic.AddInt64(&failed, 1)
				zap.L().Warn("orphan image removal failed", zap.String("file_path", key), zap.Error(err))
				return
			}
			atomic.AddInt64(&removed, 1)
		})
		if err != nil {
			wg.Done()
			atomic.AddInt64(&failed, 1)
		}
	}
	wg.Wait()

	report.Removed = int(removed)
	report.Failed = int(failed)
	zap.L().Info("orphan image sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("orphaned", report.Orphaned),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed),
	)
	m.publish(ctx, TopicOrphansSwept, 0, 0, fmt.Sprintf("removed %d of %d", report.Removed, report.Orphaned))
	return report, nil
}
