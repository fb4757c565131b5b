package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type stockAdjustRequest struct {
	ProductID   string `json:"product_id"`
	Delta       int32  `json:"delta"`
	ReferenceID string `json:"reference_id,omitempty"`
}

type stockRestockRequest struct {
	ProductID   string `json:"product_id"`
	Quantity    int32  `json:"quantity"`
	ReferenceID string `json:"reference_id,omitempty"`
}

type ledgerEntryResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Type          string    `json:"type"`
	QuantityDelta int32     `json:"quantity_delta"`
	PreviousStock int32     `json:"previous_stock"`
	NewStock      int32     `json:"new_stock"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toLedgerEntryResponse(entry domain.InventoryTransaction) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:            entry.ID,
		ProductID:     entry.ProductID,
		Type:          string(entry.Type),
		QuantityDelta: entry.QuantityDelta,
		PreviousStock: entry.PreviousStock,
		NewStock:      entry.NewStock,
		ReferenceID:   entry.ReferenceID,
		ReferenceType: entry.ReferenceType,
		CreatedAt:     entry.CreatedAt,
	}
}

func (s *Server) handleStockAdjust(w http.ResponseWriter, r *http.Request) {
	var req stockAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var entry domain.InventoryTransaction
	err := s.store.WithinTx(r.Context(), func(tx domain.Tx) error {
		var err error
		entry, err = s.stock.Adjust(tx, req.ProductID, req.Delta, req.ReferenceID)
		return err
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLedgerEntryResponse(entry))
}

func (s *Server) handleStockRestock(w http.ResponseWriter, r *http.Request) {
	var req stockRestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var entry domain.InventoryTransaction
	err := s.store.WithinTx(r.Context(), func(tx domain.Tx) error {
		var err error
		entry, err = s.stock.Restock(tx, req.ProductID, req.Quantity, domain.TransactionTypeRestock, req.ReferenceID, "restock")
		return err
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLedgerEntryResponse(entry))
}

func (s *Server) handleProductLedger(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	var entries []domain.InventoryTransaction
	err := s.store.WithinTx(r.Context(), func(tx domain.Tx) error {
		if _, err := tx.Products().Get(productID); err != nil {
			return err
		}
		var err error
		entries, err = tx.Ledger().ListByProduct(productID, limit)
		return err
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, toLedgerEntryResponse(entry))
	}
	s.writeJSON(w, http.StatusOK, result)
}
