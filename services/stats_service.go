package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"restaurant-queue/models"
)

const (
	dailyStatsKeyPrefix   = "queue:stats:daily:"
	monthlyStatsKeyPrefix = "queue:stats:monthly:"
)

// StatsService maintains the cached daily and monthly aggregates. Counters
// move incrementally on completion; failures here are logged and swallowed
// so a stats hiccup never fails the customer-facing transition.
type StatsService struct {
	Redis *redis.Client
}

func NewStatsService(redisClient *redis.Client) *StatsService {
	return &StatsService{Redis: redisClient}
}

func dailyStatsKey(t time.Time) string {
	return dailyStatsKeyPrefix + t.Format("2006-01-02")
}

func monthlyStatsKey(t time.Time) string {
	return monthlyStatsKeyPrefix + t.Format("2006-01")
}

// RecordCompletion folds one completed entry into the daily and monthly
// aggregates. waitTime is minutes between join and start of service.
func (s *StatsService) RecordCompletion(ctx context.Context, at time.Time, partySize, waitTime int) {
	if err := s.increment(ctx, dailyStatsKey(at), at, partySize, waitTime, true); err != nil {
		slog.Error("daily stats update failed", "error", err)
	}
	if err := s.increment(ctx, monthlyStatsKey(at), at, partySize, waitTime, false); err != nil {
		slog.Error("monthly stats update failed", "error", err)
	}
}

func (s *StatsService) increment(ctx context.Context, key string, at time.Time, partySize, waitTime int, stampUpdate bool) error {
	served, err := s.Redis.HIncrBy(ctx, key, "total_served", 1).Result()
	if err != nil {
		return fmt.Errorf("incrementing total_served: %w", err)
	}
	if err := s.Redis.HIncrBy(ctx, key, "total_people", int64(partySize)).Err(); err != nil {
		return fmt.Errorf("incrementing total_people: %w", err)
	}
	totalWait, err := s.Redis.HIncrBy(ctx, key, "total_wait_time", int64(waitTime)).Result()
	if err != nil {
		return fmt.Errorf("incrementing total_wait_time: %w", err)
	}

	// avg_wait_time = round(total_wait_time / total_served), half away
	// from zero. Decimal division avoids float drift on long-lived
	// counters.
	avg := decimal.NewFromInt(totalWait).
		Div(decimal.NewFromInt(served)).
		Round(0).
		IntPart()

	if stampUpdate {
		err = s.Redis.HSet(ctx, key, "avg_wait_time", avg, "last_updated", at.UnixMilli()).Err()
	} else {
		err = s.Redis.HSet(ctx, key, "avg_wait_time", avg).Err()
	}
	if err != nil {
		return fmt.Errorf("storing avg_wait_time: %w", err)
	}
	return nil
}

// Daily returns the aggregate for the given day, zero-valued when absent.
func (s *StatsService) Daily(ctx context.Context, at time.Time) (models.DailyStats, error) {
	stats := models.DailyStats{Date: at.Format("2006-01-02")}

	fields, err := s.Redis.HGetAll(ctx, dailyStatsKey(at)).Result()
	if err != nil {
		return stats, fmt.Errorf("reading daily stats: %w", err)
	}

	stats.TotalServed = intField(fields, "total_served")
	stats.TotalPeople = intField(fields, "total_people")
	stats.TotalWaitTime = intField(fields, "total_wait_time")
	stats.AvgWaitTime = intField(fields, "avg_wait_time")
	if ms := intField(fields, "last_updated"); ms > 0 {
		stats.LastUpdated = time.UnixMilli(int64(ms))
	}
	return stats, nil
}

// Monthly returns the aggregate for the given month, zero-valued when
// absent.
func (s *StatsService) Monthly(ctx context.Context, at time.Time) (models.MonthlyStats, error) {
	stats := models.MonthlyStats{Month: at.Format("2006-01")}

	fields, err := s.Redis.HGetAll(ctx, monthlyStatsKey(at)).Result()
	if err != nil {
		return stats, fmt.Errorf("reading monthly stats: %w", err)
	}

	stats.TotalServed = intField(fields, "total_served")
	stats.TotalPeople = intField(fields, "total_people")
	stats.TotalWaitTime = intField(fields, "total_wait_time")
	stats.AvgWaitTime = intField(fields, "avg_wait_time")
	return stats, nil
}

func intField(fields map[string]string, name string) int {
	v, err := strconv.Atoi(fields[name])
	if err != nil {
		return 0
	}
	return v
}
