// Package httpapi — внешний HTTP-интерфейс сервиса. Преобразует
// JSON-запросы в операции процессоров и доменные ошибки в HTTP-статусы.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/integrity"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/ledger"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/returns"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Server связывает HTTP-маршруты с процессорами домена.
type Server struct {
	store       domain.Store
	orders      *orders.Processor
	returns     *returns.Processor
	recalc      *orders.Recalculator
	checker     *integrity.Checker
	stock       *ledger.Ledger
	idempotency domain.IdempotencyRepository

	idempotencyTTL time.Duration
	logger         *log.Entry
}

// New создаёт HTTP-сервер поверх процессоров. idempotencyRepo может
// быть nil — тогда заголовок Idempotency-Key игнорируется.
func New(
	store domain.Store,
	orderProcessor *orders.Processor,
	returnProcessor *returns.Processor,
	recalculator *orders.Recalculator,
	checker *integrity.Checker,
	stockLedger *ledger.Ledger,
	idempotencyRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Server{
		store:          store,
		orders:         orderProcessor,
		returns:        returnProcessor,
		recalc:         recalculator,
		checker:        checker,
		stock:          stockLedger,
		idempotency:    idempotencyRepo,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         logger,
	}
}

// Routes регистрирует все маршруты API.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/orders", s.handleCreateOrder)
	mux.HandleFunc("GET /v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("POST /v1/orders/{id}/status", s.handleUpdateOrderStatus)
	mux.HandleFunc("POST /v1/orders/{id}/recalculate", s.handleRecalculateOrder)
	mux.HandleFunc("POST /v1/quotes", s.handleQuote)

	mux.HandleFunc("POST /v1/returns", s.handleCreateReturn)
	mux.HandleFunc("GET /v1/returns/{id}", s.handleGetReturn)

	mux.HandleFunc("POST /v1/stock/adjust", s.handleStockAdjust)
	mux.HandleFunc("POST /v1/stock/restock", s.handleStockRestock)
	mux.HandleFunc("GET /v1/products/{id}/ledger", s.handleProductLedger)

	mux.HandleFunc("POST /v1/integrity/check", s.handleIntegrityCheck)

	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeDomainError переводит доменную ошибку в HTTP-ответ.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status, message := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	s.writeError(w, status, message)
}

// statusForError сопоставляет доменные ошибки HTTP-статусам:
// отсутствие записи — 404, конфликт состояния — 409, отказ по
// входным данным — 422, всё остальное — 500 без деталей.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrReturnNotAllowed),
		errors.Is(err, domain.ErrStatusTransitionInvalid),
		domain.IsVersionConflict(err):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrCustomerInvalid),
		errors.Is(err, domain.ErrProductInvalid),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrStockNegative),
		domain.IsValidationError(err):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
