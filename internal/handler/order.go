package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"orderstats/internal/logger"
	"orderstats/internal/model"
	"orderstats/internal/service"
)

const uploadSuccessMessage = "orders uploaded or updated successfully"

type OrderService interface {
	Upload(ctx context.Context, req service.UploadRequest) (service.UploadResult, error)
	GetOrder(ctx context.Context, number string) (model.OrderDetails, error)
}

type uploadResponse struct {
	Message    string               `json:"message"`
	Statistics service.UploadResult `json:"statistics"`
}

func UploadOrdersHandler(orderSvc OrderService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context(), nil)

		var req service.UploadRequest
		if err := decodeJSON(w, r, maxBytes, &req); err != nil {
			if errors.Is(err, errBodyTooLarge) {
				writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
				return
			}
			if verr, ok := service.TypeMismatch(err); ok {
				log.Warn("upload rejected", zap.Any("errors", verr.Fields))
				writeJSON(w, r, http.StatusBadRequest, verr.Fields)
				return
			}
			log.Warn("invalid upload body", zap.Error(err))
			writeError(w, r, http.StatusBadRequest, "invalid json")
			return
		}

		result, err := orderSvc.Upload(r.Context(), req)
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, r, http.StatusBadRequest, verr.Fields)
				return
			}
			log.Error("order upload failed", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, r, http.StatusCreated, uploadResponse{
			Message:    uploadSuccessMessage,
			Statistics: result,
		})
	}
}

func GetOrderHandler(orderSvc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "order_number")

		details, err := orderSvc.GetOrder(r.Context(), number)
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				writeError(w, r, http.StatusNotFound, "order "+number+" not found")
				return
			}
			logger.FromContext(r.Context(), nil).Error("get order failed", zap.String("order_number", number), zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, r, http.StatusOK, details)
	}
}
