// Package handler содержит HTTP-обработчики сервиса приёма пожертвований.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pledge-service/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreatePledge(ctx context.Context, req model.PledgeRequest) (*model.PledgeResult, error)
	CancelAutoRenew(ctx context.Context, sessionID string) (*model.CancelResult, error)
}

// History предоставляет историю журнала по донору.
type History interface {
	ListLedgerRecords(ctx context.Context, email string) ([]model.LedgerRecord, error)
}

// Handler реализует HTTP-обработчики сервиса приёма пожертвований.
type Handler struct {
	service   Service
	history   History
	logger    *zap.Logger
	staticDir string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// history может быть nil, если копия журнала в БД не настроена.
func NewHandler(s Service, history History, logger *zap.Logger, staticDir string) *Handler {
	return &Handler{
		service:   s,
		history:   history,
		logger:    logger,
		staticDir: staticDir,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// DonationForm отдаёт страницу с формой пожертвования.
func (h *Handler) DonationForm(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "donation.html"))
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// CreateCheckoutSession оформляет пожертвование и возвращает адрес страницы оплаты.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req model.PledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("decode pledge request error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := h.service.CreatePledge(r.Context(), req)
	if err != nil {
		h.logger.Error("create pledge error", zap.Error(err), zap.String("email", req.Email))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.logger.Info("pledge created",
		zap.String("session_id", res.SessionID),
		zap.Int("installments", res.Schedule.Installments),
		zap.String("last_installment", res.Schedule.LastInstallment.String()))

	h.writeJSON(w, http.StatusOK, checkoutResponse{URL: res.URL})
}

type cancelRequest struct {
	SessionID string `json:"sessionId"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// CancelSubscription отменяет автопродление подписки с конца финансового года.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("decode cancel request error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := h.service.CancelAutoRenew(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("cancel auto-renew error", zap.Error(err), zap.String("session_id", req.SessionID))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.logger.Info("auto-renew cancelled",
		zap.String("subscription_id", res.SubscriptionID),
		zap.Time("effective_end", res.EffectiveEnd),
		zap.Bool("already_cancelled", res.AlreadyCancelled))

	h.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

var errHistoryDisabled = errors.New("ledger history is not available")

type ledgerRecordResponse struct {
	ID                  string `json:"id"`
	Timestamp           string `json:"timestamp"`
	DonorName           string `json:"donor_name"`
	AutoRenew           string `json:"auto_renew"`
	StartDate           string `json:"start_date"`
	LastInstallmentDate string `json:"last_installment_date"`
	MonthlyAmount       string `json:"monthly_amount"`
	TotalPledge         string `json:"total_pledge"`
	Installments        string `json:"installments"`
}

// GetLedger возвращает историю записей журнала по адресу электронной почты донора.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, errHistoryDisabled)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("email is required"))
		return
	}

	records, err := h.history.ListLedgerRecords(r.Context(), email)
	if err != nil {
		h.logger.Error("list ledger records error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]ledgerRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, ledgerRecordResponse{
			ID:                  rec.EventID,
			Timestamp:           rec.Timestamp.Format(time.RFC3339),
			DonorName:           rec.DonorName,
			AutoRenew:           rec.AutoRenew,
			StartDate:           rec.StartDate,
			LastInstallmentDate: rec.LastInstallmentDate,
			MonthlyAmount:       rec.MonthlyAmount,
			TotalPledge:         rec.TotalPledge,
			Installments:        rec.Installments,
		})
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(resp)))
	h.writeJSON(w, http.StatusOK, resp)
}

// Health сообщает, что сервис запущен.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
