package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"orderstats/internal/logger"
	"orderstats/internal/model"
	"orderstats/internal/service"
)

type StatsService interface {
	UserStats(ctx context.Context, username string) (model.UserStats, error)
	ListDaily(ctx context.Context, limit int) ([]model.DailyOrderStats, error)
}

func UserStatsHandler(statsSvc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.URL.Query().Get("user"))

		stats, err := statsSvc.UserStats(r.Context(), username)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUsernameRequired):
				writeError(w, r, http.StatusBadRequest, "user parameter is required, use /api/orders/stats?user=username")
			case errors.Is(err, service.ErrUserNotFound):
				writeError(w, r, http.StatusNotFound, "user "+username+" not found")
			default:
				logger.FromContext(r.Context(), nil).Error("user stats failed", zap.String("user", username), zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, "internal error")
			}
			return
		}

		writeJSON(w, r, http.StatusOK, stats)
	}
}

func DailyStatsHandler(statsSvc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := statsSvc.ListDaily(r.Context(), service.DailyListLimit)
		if err != nil {
			logger.FromContext(r.Context(), nil).Error("list daily stats failed", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if list == nil {
			list = []model.DailyOrderStats{}
		}

		writeJSON(w, r, http.StatusOK, list)
	}
}
