package services

import (
	"context"
	"log/slog"
	"time"
)

// StartBackgroundTasks launches the periodic broadcaster and the archive
// trimmer. Call Shutdown to stop both.
func (s *QueueService) StartBackgroundTasks() {
	s.wg.Add(1)
	go s.estimateBroadcaster()

	s.wg.Add(1)
	go s.historyTrimmer()

	slog.Info("queue background tasks started")
}

// estimateBroadcaster re-publishes every waiting entry's rank and wait
// estimate on a ticker. Ranks shift when entries ahead leave without any
// write touching the remaining entries, so watchers need a periodic push
// on top of the per-mutation ones.
func (s *QueueService) estimateBroadcaster() {
	defer s.wg.Done()

	interval := 5 * time.Second
	if s.Config != nil && s.Config.EstimateUpdateInterval > 0 {
		interval = s.Config.EstimateUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcastEstimates(context.Background())
		case <-s.stopChan:
			slog.Info("estimate broadcaster stopping")
			return
		}
	}
}

func (s *QueueService) broadcastEstimates(ctx context.Context) {
	ids, err := s.Redis.ZRange(ctx, waitingIndexKey, 0, -1).Result()
	if err != nil {
		slog.Error("listing waiting entries for broadcast", "error", err)
		return
	}

	for _, id := range ids {
		s.publishEntryUpdate(ctx, id)
	}
	if len(ids) > 0 {
		s.publishListUpdate(ctx)
	}
}

// historyTrimmer caps the archived partition at the configured retention,
// dropping the oldest completions beyond it.
func (s *QueueService) historyTrimmer() {
	defer s.wg.Done()

	interval := time.Hour
	if s.Config != nil && s.Config.HistoryTrimInterval > 0 {
		interval = s.Config.HistoryTrimInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.trimHistory(context.Background())
		case <-s.stopChan:
			slog.Info("history trimmer stopping")
			return
		}
	}
}

func (s *QueueService) trimHistory(ctx context.Context) {
	retention := 500
	if s.Config != nil && s.Config.HistoryRetention > 0 {
		retention = s.Config.HistoryRetention
	}

	total, err := s.Redis.ZCard(ctx, archivedIndexKey).Result()
	if err != nil || total <= int64(retention) {
		return
	}

	excess := total - int64(retention)
	ids, err := s.Redis.ZRange(ctx, archivedIndexKey, 0, excess-1).Result()
	if err != nil {
		slog.Error("listing stale archived entries", "error", err)
		return
	}

	for _, id := range ids {
		s.Redis.Del(ctx, archivedKey(id))
	}
	s.Redis.ZRemRangeByRank(ctx, archivedIndexKey, 0, excess-1)

	slog.Info("trimmed archived history", "removed", len(ids))
}

// Shutdown stops background tasks and waits for them to finish, with a
// timeout so shutdown never hangs on a stuck store call.
func (s *QueueService) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("queue background tasks stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("timeout waiting for queue background tasks")
	}
}
