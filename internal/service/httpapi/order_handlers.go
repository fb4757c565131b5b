package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
)

type orderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerID        string             `json:"customer_id"`
	ShippingAddressID string             `json:"shipping_address_id,omitempty"`
	BillingAddressID  string             `json:"billing_address_id,omitempty"`
	Items             []orderItemRequest `json:"items"`
	TaxRate           decimal.Decimal    `json:"tax_rate"`
	Shipping          decimal.Decimal    `json:"shipping"`
	Discount          decimal.Decimal    `json:"discount"`
}

type orderLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Discount  string `json:"discount"`
	LineTotal string `json:"line_total"`
}

type orderResponse struct {
	ID                string              `json:"id"`
	CustomerID        string              `json:"customer_id"`
	OrderDate         time.Time           `json:"order_date"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"payment_status"`
	ShippingAddressID string              `json:"shipping_address_id,omitempty"`
	BillingAddressID  string              `json:"billing_address_id,omitempty"`
	Subtotal          string              `json:"subtotal"`
	Tax               string              `json:"tax"`
	Shipping          string              `json:"shipping"`
	Discount          string              `json:"discount"`
	Total             string              `json:"total"`
	Lines             []orderLineResponse `json:"lines"`
	Version           int64               `json:"version"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, orderLineResponse{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			Discount:  line.Discount.String(),
			LineTotal: line.LineTotal.String(),
		})
	}
	return orderResponse{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		OrderDate:         o.OrderDate,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		ShippingAddressID: o.ShippingAddressID,
		BillingAddressID:  o.BillingAddressID,
		Subtotal:          o.Subtotal.String(),
		Tax:               o.Tax.String(),
		Shipping:          o.Shipping.String(),
		Discount:          o.Discount.String(),
		Total:             o.Total.String(),
		Lines:             lines,
		Version:           o.Version,
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]orders.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	s.withIdempotency(w, r, body, func() (int, any) {
		order, err := s.orders.ProcessOrder(r.Context(), orders.OrderRequest{
			CustomerID:        req.CustomerID,
			ShippingAddressID: req.ShippingAddressID,
			BillingAddressID:  req.BillingAddressID,
			Items:             items,
			TaxRate:           req.TaxRate,
			Shipping:          req.Shipping,
			Discount:          req.Discount,
		})
		if err != nil {
			status, message := statusForError(err)
			if status == http.StatusInternalServerError {
				s.logger.WithError(err).Error("order creation failed")
			}
			return status, errorResponse{Error: message}
		}
		return http.StatusCreated, toOrderResponse(order)
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updateOrderStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.orders.UpdateStatus(
		r.Context(),
		r.PathValue("id"),
		domain.OrderStatus(req.Status),
		domain.PaymentStatus(req.PaymentStatus),
	)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleRecalculateOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	err := s.store.WithinTx(r.Context(), func(tx domain.Tx) error {
		var err error
		order, err = s.recalc.Recalculate(tx, r.PathValue("id"))
		return err
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type quoteRequest struct {
	CustomerID string    `json:"customer_id"`
	ProductID  string    `json:"product_id,omitempty"`
	Quantity   int32     `json:"quantity"`
	WeightLb   float64   `json:"weight_lb"`
	Zone       string    `json:"zone"`
	Method     string    `json:"method"`
	OrderDate  time.Time `json:"order_date,omitempty"`
}

type quoteResponse struct {
	Tier              string    `json:"tier"`
	DiscountPercent   string    `json:"discount_percent"`
	ShippingCost      string    `json:"shipping_cost"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := s.orders.Quote(orders.QuoteRequest{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		WeightLb:   req.WeightLb,
		Zone:       pricing.Zone(req.Zone),
		Method:     pricing.Method(req.Method),
		OrderDate:  req.OrderDate,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, quoteResponse{
		Tier:              string(quote.Tier),
		DiscountPercent:   quote.DiscountPercent.String(),
		ShippingCost:      quote.ShippingCost.String(),
		EstimatedDelivery: quote.EstimatedDelivery,
	})
}
