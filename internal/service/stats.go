package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"orderstats/internal/logger"
	"orderstats/internal/metrics"
	"orderstats/internal/model"
	"orderstats/internal/repository"
)

// DailyListLimit is the number of snapshots served by the listing endpoint.
const DailyListLimit = 30

type DailyRunResult struct {
	Date    time.Time
	Created bool
	Stats   model.DailyOrderStats
}

func (r DailyRunResult) Message() string {
	if r.Created {
		return fmt.Sprintf("daily stats for %s created", r.Date.Format(time.DateOnly))
	}
	return fmt.Sprintf("daily stats for %s already exist", r.Date.Format(time.DateOnly))
}

type StatsService struct {
	users repository.UserRepo
	stats repository.StatsRepo
	loc   *time.Location
	log   *zap.Logger
}

func NewStatsService(users repository.UserRepo, stats repository.StatsRepo, loc *time.Location, log *zap.Logger) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{
		users: users,
		stats: stats,
		loc:   loc,
		log:   log.Named("stats"),
	}
}

// UserStats aggregates every order owned by username. A username that was
// never stored yields ErrUserNotFound, not zero stats.
func (s *StatsService) UserStats(ctx context.Context, username string) (model.UserStats, error) {
	log := logger.FromContext(ctx, s.log)

	username = strings.TrimSpace(username)
	if username == "" {
		return model.UserStats{}, ErrUsernameRequired
	}

	user, err := s.users.GetByUsername(ctx, nil, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("user not found", zap.String("user", username))
			return model.UserStats{}, ErrUserNotFound
		}
		return model.UserStats{}, fmt.Errorf("get user %q: %w", username, err)
	}

	stats, err := s.stats.UserTotals(ctx, nil, user.ID)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("user totals %q: %w", username, err)
	}
	stats.Username = username

	log.Info("user stats computed",
		zap.String("user", username),
		zap.Int64("orders_count", stats.OrdersCount),
		zap.String("total_revenue", stats.TotalRevenue.StringFixed(model.MoneyScale)),
		zap.String("avg_order_value", stats.AvgOrderValue.StringFixed(model.MoneyScale)),
	)
	return stats, nil
}

// previousDay returns the bounds [start, end) of the calendar day before now in loc.
func previousDay(now time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := now.In(loc).Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, loc)
	start := end.AddDate(0, 0, -1)
	return start, end
}

// RunDaily stores the snapshot of the day before now. A snapshot is written at
// most once per date: when the date is already stored, by an earlier run or a
// concurrent one, the result reports Created=false and nothing changes.
func (s *StatsService) RunDaily(ctx context.Context, now time.Time) (DailyRunResult, error) {
	log := logger.FromContext(ctx, s.log)

	start, end := previousDay(now, s.loc)
	result := DailyRunResult{Date: start}
	log = log.With(zap.String("date", start.Format(time.DateOnly)))
	log.Info("computing daily order stats")

	exists, err := s.stats.DailyExists(ctx, nil, start)
	if err != nil {
		metrics.DailyStatsRuns.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("check daily stats: %w", err)
	}
	if exists {
		metrics.DailyStatsRuns.WithLabelValues("exists").Inc()
		log.Warn("daily stats already exist")
		return result, nil
	}

	agg, err := s.stats.AggregateWindow(ctx, nil, start, end)
	if err != nil {
		metrics.DailyStatsRuns.WithLabelValues("failed").Inc()
		log.Error("failed to aggregate daily stats", zap.Error(err))
		return result, fmt.Errorf("aggregate daily stats: %w", err)
	}
	agg.Date = start

	stored, err := s.stats.InsertDaily(ctx, nil, agg)
	if err != nil {
		if errors.Is(err, repository.ErrDailyStatsExists) {
			metrics.DailyStatsRuns.WithLabelValues("exists").Inc()
			log.Warn("daily stats already exist")
			return result, nil
		}
		metrics.DailyStatsRuns.WithLabelValues("failed").Inc()
		log.Error("failed to store daily stats", zap.Error(err))
		return result, fmt.Errorf("store daily stats: %w", err)
	}

	result.Created = true
	result.Stats = stored
	metrics.DailyStatsRuns.WithLabelValues("created").Inc()
	log.Info("daily stats created",
		zap.Int64("total_orders", stored.TotalOrders),
		zap.Int64("total_users", stored.TotalUsers),
		zap.String("total_revenue", stored.TotalRevenue.StringFixed(model.MoneyScale)),
	)
	return result, nil
}

// ListDaily returns the latest limit snapshots, newest first.
func (s *StatsService) ListDaily(ctx context.Context, limit int) ([]model.DailyOrderStats, error) {
	if limit <= 0 {
		limit = DailyListLimit
	}
	list, err := s.stats.ListDaily(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	return list, nil
}
