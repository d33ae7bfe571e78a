package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"restaurant-queue/config"
	"restaurant-queue/fanout"
	"restaurant-queue/internal/status"
	"restaurant-queue/models"
	"restaurant-queue/monitoring"
	"restaurant-queue/utils"
)

const (
	waitingIndexKey  = "queue:waiting:index"
	servingIndexKey  = "queue:serving:index"
	archivedIndexKey = "queue:archived:index"
	settingsKey      = "settings:config"
)

func waitingKey(id string) string  { return "queue:waiting:" + id }
func servingKey(id string) string  { return "queue:serving:" + id }
func archivedKey(id string) string { return "queue:archived:" + id }

// joinScript assigns the next position (max waiting position + 1, 1 when
// the partition is empty) and inserts the entry in one atomic step, so two
// concurrent joins can never observe the same maximum.
// KEYS: waiting index, entry hash. ARGV: id, name, party_size, phone, now_ms.
const joinScript = `
local max = 0
local top = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
if #top == 2 then max = tonumber(top[2]) end
local pos = max + 1
redis.call('HSET', KEYS[2], 'name', ARGV[2], 'party_size', ARGV[3], 'phone', ARGV[4], 'position', pos, 'created_at', ARGV[5], 'updated_at', ARGV[5])
redis.call('ZADD', KEYS[1], pos, ARGV[1])
return pos
`

// serveScript moves a waiting entry to the serving partition. Returns -1
// when the entry is in neither partition, -2 when it is already serving.
// KEYS: waiting index, waiting hash, serving index, serving hash.
// ARGV: id, now_ms.
const serveScript = `
if redis.call('EXISTS', KEYS[2]) == 0 then
  if redis.call('EXISTS', KEYS[4]) == 1 then return -2 end
  return -1
end
local fields = redis.call('HGETALL', KEYS[2])
for i = 1, #fields, 2 do
  redis.call('HSET', KEYS[4], fields[i], fields[i+1])
end
redis.call('HSET', KEYS[4], 'served_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('DEL', KEYS[2])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[3], tonumber(ARGV[2]), ARGV[1])
return 1
`

// archiveScript moves an entry from waiting or serving into the archived
// partition. Completing straight from waiting is allowed; the wait time is
// then measured up to now. Returns -1 when the entry is in neither live
// partition, otherwise {wait_time, party_size}.
// KEYS: waiting index, waiting hash, serving index, serving hash,
// archived index, archived hash. ARGV: id, target status, now_ms.
const archiveScript = `
local src, idx
if redis.call('EXISTS', KEYS[4]) == 1 then
  src = KEYS[4]
  idx = KEYS[3]
elseif redis.call('EXISTS', KEYS[2]) == 1 then
  src = KEYS[2]
  idx = KEYS[1]
else
  return -1
end
local fields = redis.call('HGETALL', src)
for i = 1, #fields, 2 do
  redis.call('HSET', KEYS[6], fields[i], fields[i+1])
end
redis.call('HSET', KEYS[6], 'status', ARGV[2], 'completed_at', ARGV[3], 'updated_at', ARGV[3])
local wait = 0
if ARGV[2] == 'completed' then
  local created = tonumber(redis.call('HGET', KEYS[6], 'created_at'))
  local base = tonumber(ARGV[3])
  local served = redis.call('HGET', KEYS[6], 'served_at')
  if served then base = tonumber(served) end
  wait = math.floor((base - created) / 60000 + 0.5)
  redis.call('HSET', KEYS[6], 'wait_time', wait)
end
local party = tonumber(redis.call('HGET', KEYS[6], 'party_size'))
redis.call('DEL', src)
redis.call('ZREM', idx, ARGV[1])
redis.call('ZADD', KEYS[5], tonumber(ARGV[3]), ARGV[1])
return {wait, party}
`

// reorderScript swaps the positions of two waiting entries. Returns -1
// unless both are in the waiting partition.
// KEYS: waiting index, hash A, hash B. ARGV: idA, idB, now_ms.
const reorderScript = `
local pa = redis.call('ZSCORE', KEYS[1], ARGV[1])
local pb = redis.call('ZSCORE', KEYS[1], ARGV[2])
if not pa or not pb then return -1 end
redis.call('ZADD', KEYS[1], pb, ARGV[1])
redis.call('ZADD', KEYS[1], pa, ARGV[2])
redis.call('HSET', KEYS[2], 'position', pb, 'updated_at', ARGV[3])
redis.call('HSET', KEYS[3], 'position', pa, 'updated_at', ARGV[3])
return 1
`

// QueueService is the store adapter: it translates queue operations into
// reads and writes against the Redis partitions and fans resulting state
// out to watchers.
type QueueService struct {
	Redis    *redis.Client
	Config   *config.Config
	Stats    *StatsService
	Notifier *NotifyService
	Broker   *fanout.Broker
	Monitor  *monitoring.Monitor

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Overridable in tests.
	nowFn func() time.Time
	idFn  func() (string, error)
}

func NewQueueService(redisClient *redis.Client, cfg *config.Config, broker *fanout.Broker, notifier *NotifyService, monitor *monitoring.Monitor) *QueueService {
	return &QueueService{
		Redis:    redisClient,
		Config:   cfg,
		Stats:    NewStatsService(redisClient),
		Notifier: notifier,
		Broker:   broker,
		Monitor:  monitor,
		stopChan: make(chan struct{}),
	}
}

func (s *QueueService) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}

func (s *QueueService) newID() (string, error) {
	if s.idFn != nil {
		return s.idFn()
	}
	return utils.GenerateEntryID()
}

// Join validates the form, assigns the next waiting position atomically and
// returns the new entry's id. The entry is visible to list watchers before
// Join returns.
func (s *QueueService) Join(ctx context.Context, name string, partySize int, phone string) (string, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if err := ValidateJoinForm(name, phone, partySize, s.maxNameLength()); err != nil {
		s.Monitor.TrackQueueOperation("join", "rejected")
		return "", err
	}

	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generating entry id: %w", err)
	}

	now := s.now().UnixMilli()
	_, err = s.Redis.Eval(ctx, joinScript,
		[]string{waitingIndexKey, waitingKey(id)},
		id, name, partySize, phone, now,
	).Result()
	if err != nil {
		s.Monitor.TrackQueueOperation("join", "error")
		return "", fmt.Errorf("inserting waiting entry: %w", err)
	}

	s.Monitor.TrackQueueOperation("join", "success")
	s.publishEntryUpdate(ctx, id)
	s.publishListUpdate(ctx)
	return id, nil
}

// GetStatus returns the merged view of an entry: stored fields plus rank
// among waiting entries and the current wait estimate. Archived entries are
// not a valid lookup target.
func (s *QueueService) GetStatus(ctx context.Context, id string) (models.QueueStatus, error) {
	fields, err := s.Redis.HGetAll(ctx, waitingKey(id)).Result()
	if err != nil {
		return models.QueueStatus{}, fmt.Errorf("reading waiting entry: %w", err)
	}

	if len(fields) > 0 {
		entry := entryFromHash(id, models.StatusWaiting, fields)

		rank, err := s.Redis.ZRank(ctx, waitingIndexKey, id).Result()
		if err != nil && err != redis.Nil {
			return models.QueueStatus{}, fmt.Errorf("ranking waiting entry: %w", err)
		}

		est, err := s.estimatedWait(ctx)
		if err != nil {
			return models.QueueStatus{}, err
		}

		return models.QueueStatus{
			Entry:             entry,
			Position:          int(rank) + 1,
			EstimatedWaitTime: est,
		}, nil
	}

	fields, err = s.Redis.HGetAll(ctx, servingKey(id)).Result()
	if err != nil {
		return models.QueueStatus{}, fmt.Errorf("reading serving entry: %w", err)
	}
	if len(fields) == 0 {
		return models.QueueStatus{}, status.NotFoundf("entry %s", id)
	}

	entry := entryFromHash(id, models.StatusServing, fields)

	est, err := s.estimatedWait(ctx)
	if err != nil {
		return models.QueueStatus{}, err
	}

	return models.QueueStatus{Entry: entry, Position: 0, EstimatedWaitTime: est}, nil
}

// Advance applies a staff-issued transition: waiting entries can start
// serving, and entries in either live partition can be completed or
// skipped. Completion feeds the daily and monthly aggregates; skipping
// never does.
func (s *QueueService) Advance(ctx context.Context, id string, target models.EntryStatus) error {
	now := s.now()

	switch target {
	case models.StatusServing:
		res, err := s.Redis.Eval(ctx, serveScript,
			[]string{waitingIndexKey, waitingKey(id), servingIndexKey, servingKey(id)},
			id, now.UnixMilli(),
		).Int64()
		if err != nil {
			s.Monitor.TrackQueueOperation("serve", "error")
			return fmt.Errorf("moving entry to serving: %w", err)
		}
		switch res {
		case -1:
			return status.NotFoundf("entry %s", id)
		case -2:
			return status.InvalidTransition(string(target))
		}

		s.Monitor.TrackQueueOperation("serve", "success")
		s.publishEntryUpdate(ctx, id)
		s.publishListUpdate(ctx)
		return nil

	case models.StatusCompleted, models.StatusSkipped:
		res, err := s.Redis.Eval(ctx, archiveScript,
			[]string{waitingIndexKey, waitingKey(id), servingIndexKey, servingKey(id), archivedIndexKey, archivedKey(id)},
			id, string(target), now.UnixMilli(),
		).Result()
		if err != nil {
			s.Monitor.TrackQueueOperation(string(target), "error")
			return fmt.Errorf("archiving entry: %w", err)
		}

		reply, ok := res.([]interface{})
		if !ok {
			return status.NotFoundf("entry %s", id)
		}

		if target == models.StatusCompleted {
			waitTime := toInt(reply[0])
			partySize := toInt(reply[1])
			s.Stats.RecordCompletion(ctx, now, partySize, waitTime)
			s.Monitor.ObserveWaitTime(waitTime)
		}

		s.Monitor.TrackQueueOperation(string(target), "success")
		if s.Broker != nil {
			s.Broker.DropEntry(id)
		}
		s.Notifier.PublishFinal(id, target)
		s.publishListUpdate(ctx)
		return nil

	default:
		return status.InvalidTransition(string(target))
	}
}

// Reorder swaps the waiting positions of two entries.
func (s *QueueService) Reorder(ctx context.Context, idA, idB string) error {
	res, err := s.Redis.Eval(ctx, reorderScript,
		[]string{waitingIndexKey, waitingKey(idA), waitingKey(idB)},
		idA, idB, s.now().UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("swapping positions: %w", err)
	}
	if res == -1 {
		return status.NotFoundf("both entries must be waiting")
	}

	s.Monitor.TrackQueueOperation("reorder", "success")
	s.publishEntryUpdate(ctx, idA)
	s.publishEntryUpdate(ctx, idB)
	s.publishListUpdate(ctx)
	return nil
}

// Search finds an entry by phone, waiting partition first. A full match
// wins, and so does a match on the last 7 digits, so a number saved with a
// country prefix still finds its entry.
func (s *QueueService) Search(ctx context.Context, phone string) (models.QueueEntry, error) {
	term := strings.TrimSpace(phone)

	for _, part := range []struct {
		index string
		key   func(string) string
		state models.EntryStatus
	}{
		{waitingIndexKey, waitingKey, models.StatusWaiting},
		{servingIndexKey, servingKey, models.StatusServing},
	} {
		ids, err := s.Redis.ZRange(ctx, part.index, 0, -1).Result()
		if err != nil {
			return models.QueueEntry{}, fmt.Errorf("listing %s entries: %w", part.state, err)
		}

		for _, id := range ids {
			fields, err := s.Redis.HGetAll(ctx, part.key(id)).Result()
			if err != nil || len(fields) == 0 {
				continue
			}
			if phoneMatches(fields["phone"], term) {
				return entryFromHash(id, part.state, fields), nil
			}
		}
	}

	return models.QueueEntry{}, status.NotFoundf("no entry for phone %s", term)
}

// Remove deletes an entry from whichever live partition holds it. Absence
// is not an error; customer withdrawal must be idempotent.
func (s *QueueService) Remove(ctx context.Context, id string) error {
	if err := s.Redis.Del(ctx, waitingKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting waiting entry: %w", err)
	}
	if err := s.Redis.ZRem(ctx, waitingIndexKey, id).Err(); err != nil {
		return fmt.Errorf("unindexing waiting entry: %w", err)
	}
	if err := s.Redis.Del(ctx, servingKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting serving entry: %w", err)
	}
	if err := s.Redis.ZRem(ctx, servingIndexKey, id).Err(); err != nil {
		return fmt.Errorf("unindexing serving entry: %w", err)
	}

	s.Monitor.TrackQueueOperation("remove", "success")
	if s.Broker != nil {
		s.Broker.DropEntry(id)
	}
	s.Notifier.PublishRemoval(id)
	s.publishListUpdate(ctx)
	return nil
}

// ListQueue returns the combined waiting and serving entries sorted
// ascending by position.
func (s *QueueService) ListQueue(ctx context.Context) ([]models.QueueEntry, error) {
	entries := []models.QueueEntry{}

	waitingIDs, err := s.Redis.ZRange(ctx, waitingIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing waiting entries: %w", err)
	}
	for _, id := range waitingIDs {
		fields, err := s.Redis.HGetAll(ctx, waitingKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		entries = append(entries, entryFromHash(id, models.StatusWaiting, fields))
	}

	servingIDs, err := s.Redis.ZRange(ctx, servingIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing serving entries: %w", err)
	}
	for _, id := range servingIDs {
		fields, err := s.Redis.HGetAll(ctx, servingKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		entries = append(entries, entryFromHash(id, models.StatusServing, fields))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

// DailyStats returns today's cached aggregate, zero-valued when no one has
// completed yet.
func (s *QueueService) DailyStats(ctx context.Context) (models.DailyStats, error) {
	return s.Stats.Daily(ctx, s.now())
}

// MonthlyStats returns the current month's cached aggregate.
func (s *QueueService) MonthlyStats(ctx context.Context) (models.MonthlyStats, error) {
	return s.Stats.Monthly(ctx, s.now())
}

// CompletionHistory returns archived entries sorted by completion time
// descending, truncated to limit (configured default when limit <= 0).
func (s *QueueService) CompletionHistory(ctx context.Context, limit int) ([]models.ArchivedEntry, error) {
	if limit <= 0 {
		limit = s.Config.HistoryLimit
	}
	if limit <= 0 {
		limit = 20
	}

	ids, err := s.Redis.ZRevRange(ctx, archivedIndexKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}

	history := []models.ArchivedEntry{}
	for _, id := range ids {
		fields, err := s.Redis.HGetAll(ctx, archivedKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		history = append(history, archivedFromHash(id, fields))
	}
	return history, nil
}

// SubscribeEntry establishes a watch over an entry's merged view. The
// callback fires with the current state right away when the entry exists,
// then on every later change, until the returned function is called.
func (s *QueueService) SubscribeEntry(ctx context.Context, id string, fn fanout.EntryCallback) (func(), error) {
	view, err := s.GetStatus(ctx, id)
	switch {
	case err == nil:
		s.Broker.PublishEntry(id, view)
	case status.IsNotFound(err):
		// No initial callback for an absent entry.
	default:
		return nil, err
	}
	return s.Broker.Subscribe(id, fn), nil
}

// SubscribeList streams the combined waiting+serving set, starting with
// the current snapshot.
func (s *QueueService) SubscribeList(ctx context.Context, fn fanout.ListCallback) (func(), error) {
	entries, err := s.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	s.Broker.PublishList(entries)
	return s.Broker.SubscribeList(fn), nil
}

func (s *QueueService) publishEntryUpdate(ctx context.Context, id string) {
	if s.Broker == nil && s.Notifier == nil {
		return
	}
	view, err := s.GetStatus(ctx, id)
	if err != nil {
		return
	}
	if s.Broker != nil {
		s.Broker.PublishEntry(id, view)
	}
	s.Notifier.PublishEntry(id, view)
}

func (s *QueueService) publishListUpdate(ctx context.Context) {
	if s.Broker == nil && s.Notifier == nil {
		return
	}
	entries, err := s.ListQueue(ctx)
	if err != nil {
		return
	}
	if s.Broker != nil {
		s.Broker.PublishList(entries)
	}
	s.Notifier.PublishList(entries)
}

// estimatedWait is waiting count times the configured average serving
// minutes (settings hash first, config fallback).
func (s *QueueService) estimatedWait(ctx context.Context) (int, error) {
	count, err := s.Redis.ZCard(ctx, waitingIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting waiting entries: %w", err)
	}
	return int(count) * s.averageServingMinutes(ctx), nil
}

func (s *QueueService) averageServingMinutes(ctx context.Context) int {
	if raw, err := s.Redis.HGet(ctx, settingsKey, "average_serving_time").Result(); err == nil {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			return minutes
		}
	}
	if s.Config != nil && s.Config.AverageServingTime > 0 {
		return int(s.Config.AverageServingTime.Minutes())
	}
	return 5
}

func (s *QueueService) maxNameLength() int {
	if s.Config != nil && s.Config.MaxNameLength > 0 {
		return s.Config.MaxNameLength
	}
	return 50
}

func phoneMatches(stored, term string) bool {
	if stored == "" || term == "" {
		return false
	}
	if stored == term {
		return true
	}
	if len(stored) >= 7 && len(term) >= 7 {
		return stored[len(stored)-7:] == term[len(term)-7:]
	}
	return false
}

func entryFromHash(id string, state models.EntryStatus, fields map[string]string) models.QueueEntry {
	entry := models.QueueEntry{
		ID:        id,
		Name:      fields["name"],
		Phone:     fields["phone"],
		Status:    state,
		PartySize: intField(fields, "party_size"),
		Position:  intField(fields, "position"),
	}
	if ms := intField(fields, "created_at"); ms > 0 {
		entry.CreatedAt = time.UnixMilli(int64(ms))
	}
	if ms := intField(fields, "updated_at"); ms > 0 {
		entry.UpdatedAt = time.UnixMilli(int64(ms))
	}
	if ms := intField(fields, "served_at"); ms > 0 {
		served := time.UnixMilli(int64(ms))
		entry.ServedAt = &served
	}
	return entry
}

func archivedFromHash(id string, fields map[string]string) models.ArchivedEntry {
	state := models.EntryStatus(fields["status"])
	archived := models.ArchivedEntry{
		QueueEntry: entryFromHash(id, state, fields),
		WaitTime:   intField(fields, "wait_time"),
	}
	if ms := intField(fields, "completed_at"); ms > 0 {
		archived.CompletedAt = time.UnixMilli(int64(ms))
	}
	return archived
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
