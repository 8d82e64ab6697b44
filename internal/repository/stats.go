package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderstats/internal/model"
)

type StatsRepo interface {
	// UserTotals aggregates all orders owned by userID; empty aggregates are zero.
	UserTotals(ctx context.Context, tx *sql.Tx, userID string) (model.UserStats, error)
	DailyExists(ctx context.Context, tx *sql.Tx, date time.Time) (bool, error)
	// AggregateWindow aggregates orders with from <= created_at < to.
	AggregateWindow(ctx context.Context, tx *sql.Tx, from, to time.Time) (model.DailyOrderStats, error)
	// InsertDaily stores a snapshot, returning ErrDailyStatsExists when the date is taken.
	InsertDaily(ctx context.Context, tx *sql.Tx, stats model.DailyOrderStats) (model.DailyOrderStats, error)
	ListDaily(ctx context.Context, tx *sql.Tx, limit int) ([]model.DailyOrderStats, error)
}

type statsRepo struct {
	db  *sql.DB
	log *zap.Logger
}

func NewStatsRepo(db *sql.DB, baseLog *zap.Logger) StatsRepo {
	return &statsRepo{db: db, log: baseLog.Named("stats_repo")}
}

func (r *statsRepo) UserTotals(ctx context.Context, tx *sql.Tx, userID string) (model.UserStats, error) {
	var s model.UserStats
	err := conn(r.db, tx).QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(ROUND(AVG(total_amount), 2), 0)
		FROM orders
		WHERE user_id = $1`, userID,
	).Scan(&s.OrdersCount, &s.TotalRevenue, &s.AvgOrderValue)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("aggregate user orders: %w", err)
	}
	return s, nil
}

func (r *statsRepo) DailyExists(ctx context.Context, tx *sql.Tx, date time.Time) (bool, error) {
	var exists bool
	err := conn(r.db, tx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_order_stats WHERE date = $1::date)`,
		date.Format(time.DateOnly),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check daily stats: %w", err)
	}
	return exists, nil
}

func (r *statsRepo) AggregateWindow(ctx context.Context, tx *sql.Tx, from, to time.Time) (model.DailyOrderStats, error) {
	var s model.DailyOrderStats
	err := conn(r.db, tx).QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(ROUND(AVG(total_amount), 2), 0),
		       COUNT(DISTINCT user_id)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2`, from, to,
	).Scan(&s.TotalOrders, &s.TotalRevenue, &s.AvgOrderValue, &s.TotalUsers)
	if err != nil {
		return model.DailyOrderStats{}, fmt.Errorf("aggregate orders window: %w", err)
	}
	return s, nil
}

func (r *statsRepo) InsertDaily(ctx context.Context, tx *sql.Tx, stats model.DailyOrderStats) (model.DailyOrderStats, error) {
	if stats.ID == "" {
		stats.ID = uuid.NewString()
	}
	err := conn(r.db, tx).QueryRowContext(ctx, `
		INSERT INTO daily_order_stats (id, date, total_users, total_orders, total_revenue, avg_order_value)
		VALUES ($1, $2::date, $3, $4, $5, $6)
		ON CONFLICT (date) DO NOTHING
		RETURNING created_at`,
		stats.ID, stats.Date.Format(time.DateOnly), stats.TotalUsers, stats.TotalOrders,
		stats.TotalRevenue, stats.AvgOrderValue,
	).Scan(&stats.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DailyOrderStats{}, ErrDailyStatsExists
		}
		return model.DailyOrderStats{}, fmt.Errorf("insert daily stats: %w", err)
	}
	return stats, nil
}

func (r *statsRepo) ListDaily(ctx context.Context, tx *sql.Tx, limit int) ([]model.DailyOrderStats, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx, `
		SELECT id, date, total_users, total_orders, total_revenue, avg_order_value, created_at
		FROM daily_order_stats
		ORDER BY date DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	result := []model.DailyOrderStats{}
	for rows.Next() {
		var s model.DailyOrderStats
		if err := rows.Scan(&s.ID, &s.Date, &s.TotalUsers, &s.TotalOrders, &s.TotalRevenue, &s.AvgOrderValue, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		result = append(result, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return result, nil
}
