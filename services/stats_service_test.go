package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_RecordCompletion(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	service := &StatsService{Redis: db}

	ctx := context.Background()
	at := time.Date(2026, 3, 14, 18, 45, 0, 0, time.UTC)
	dailyKey := "queue:stats:daily:2026-03-14"
	monthlyKey := "queue:stats:monthly:2026-03"

	mock.ExpectHIncrBy(dailyKey, "total_served", 1).SetVal(1)
	mock.ExpectHIncrBy(dailyKey, "total_people", 4).SetVal(4)
	mock.ExpectHIncrBy(dailyKey, "total_wait_time", 25).SetVal(25)
	mock.ExpectHSet(dailyKey, "avg_wait_time", int64(25), "last_updated", at.UnixMilli()).SetVal(0)

	mock.ExpectHIncrBy(monthlyKey, "total_served", 1).SetVal(2)
	mock.ExpectHIncrBy(monthlyKey, "total_people", 4).SetVal(7)
	mock.ExpectHIncrBy(monthlyKey, "total_wait_time", 25).SetVal(40)
	mock.ExpectHSet(monthlyKey, "avg_wait_time", int64(20)).SetVal(0)

	service.RecordCompletion(ctx, at, 4, 25)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsService_RecordCompletion_AverageRoundsHalfUp(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	service := &StatsService{Redis: db}

	ctx := context.Background()
	at := time.Date(2026, 3, 14, 18, 45, 0, 0, time.UTC)
	dailyKey := "queue:stats:daily:2026-03-14"
	monthlyKey := "queue:stats:monthly:2026-03"

	// 31 total minutes over 2 completions averages to 15.5, stored as 16.
	mock.ExpectHIncrBy(dailyKey, "total_served", 1).SetVal(2)
	mock.ExpectHIncrBy(dailyKey, "total_people", 3).SetVal(5)
	mock.ExpectHIncrBy(dailyKey, "total_wait_time", 11).SetVal(31)
	mock.ExpectHSet(dailyKey, "avg_wait_time", int64(16), "last_updated", at.UnixMilli()).SetVal(0)

	mock.ExpectHIncrBy(monthlyKey, "total_served", 1).SetVal(2)
	mock.ExpectHIncrBy(monthlyKey, "total_people", 3).SetVal(5)
	mock.ExpectHIncrBy(monthlyKey, "total_wait_time", 11).SetVal(31)
	mock.ExpectHSet(monthlyKey, "avg_wait_time", int64(16)).SetVal(0)

	service.RecordCompletion(ctx, at, 3, 11)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsService_Daily(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	service := &StatsService{Redis: db}

	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	updated := at.Add(-time.Hour).UnixMilli()

	mock.ExpectHGetAll("queue:stats:daily:2026-03-14").SetVal(map[string]string{
		"total_served":    "12",
		"total_people":    "40",
		"total_wait_time": "180",
		"avg_wait_time":   "15",
		"last_updated":    int64String(updated),
	})

	stats, err := service.Daily(ctx, at)

	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", stats.Date)
	assert.Equal(t, 12, stats.TotalServed)
	assert.Equal(t, 40, stats.TotalPeople)
	assert.Equal(t, 180, stats.TotalWaitTime)
	assert.Equal(t, 15, stats.AvgWaitTime)
	assert.Equal(t, updated, stats.LastUpdated.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsService_Daily_EmptyDayIsZeroValued(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	service := &StatsService{Redis: db}

	ctx := context.Background()
	at := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	mock.ExpectHGetAll("queue:stats:daily:2026-03-15").SetVal(map[string]string{})

	stats, err := service.Daily(ctx, at)

	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", stats.Date)
	assert.Zero(t, stats.TotalServed)
	assert.Zero(t, stats.AvgWaitTime)
	assert.True(t, stats.LastUpdated.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsService_Monthly(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	service := &StatsService{Redis: db}

	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectHGetAll("queue:stats:monthly:2026-03").SetVal(map[string]string{
		"total_served":    "300",
		"total_people":    "900",
		"total_wait_time": "4200",
		"avg_wait_time":   "14",
	})

	stats, err := service.Monthly(ctx, at)

	require.NoError(t, err)
	assert.Equal(t, "2026-03", stats.Month)
	assert.Equal(t, 300, stats.TotalServed)
	assert.Equal(t, 900, stats.TotalPeople)
	assert.Equal(t, 4200, stats.TotalWaitTime)
	assert.Equal(t, 14, stats.AvgWaitTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}
