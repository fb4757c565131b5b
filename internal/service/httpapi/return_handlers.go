package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/returns"
)

type createReturnRequest struct {
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	ReturnQuantity int32  `json:"return_quantity"`
	Reason         string `json:"reason,omitempty"`
	// RefundAmount отсутствует — сумма по умолчанию: quantity × unit_price.
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	Restock      bool             `json:"restock"`
}

type returnResponse struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	ProductID      string     `json:"product_id"`
	CustomerID     string     `json:"customer_id"`
	ReturnQuantity int32      `json:"return_quantity"`
	RefundAmount   string     `json:"refund_amount"`
	Reason         string     `json:"reason,omitempty"`
	Status         string     `json:"status"`
	Restock        bool       `json:"restock"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

func toReturnResponse(ret domain.ProductReturn) returnResponse {
	resp := returnResponse{
		ID:             ret.ID,
		OrderID:        ret.OrderID,
		ProductID:      ret.ProductID,
		CustomerID:     ret.CustomerID,
		ReturnQuantity: ret.ReturnQuantity,
		RefundAmount:   ret.RefundAmount.String(),
		Reason:         ret.Reason,
		Status:         string(ret.Status),
		Restock:        ret.Restock,
	}
	if !ret.ProcessedAt.IsZero() {
		processedAt := ret.ProcessedAt
		resp.ProcessedAt = &processedAt
	}
	return resp
}

func (s *Server) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req createReturnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.withIdempotency(w, r, body, func() (int, any) {
		productReturn, err := s.returns.ProcessReturn(r.Context(), returns.ReturnRequest{
			OrderID:        req.OrderID,
			ProductID:      req.ProductID,
			ReturnQuantity: req.ReturnQuantity,
			Reason:         req.Reason,
			RefundAmount:   req.RefundAmount,
			Restock:        req.Restock,
		})
		if err != nil {
			status, message := statusForError(err)
			if status == http.StatusInternalServerError {
				s.logger.WithError(err).Error("return processing failed")
			}
			return status, errorResponse{Error: message}
		}
		return http.StatusCreated, toReturnResponse(productReturn)
	})
}

func (s *Server) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	productReturn, err := s.returns.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toReturnResponse(productReturn))
}
