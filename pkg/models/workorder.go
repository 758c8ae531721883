package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkOrder represents a client's order to produce a quantity of a product
// by a due date. DeliveredAt is nil until the order ships; on-time delivery
// compares it against DueDate under the client's OTD mode.
type WorkOrder struct {
	ID           uuid.UUID  `json:"id"`
	ClientID     uuid.UUID  `json:"client_id"`
	Code         string     `json:"code"`
	ProductCode  string     `json:"product_code"`
	Quantity     int        `json:"quantity"`
	CompletedQty int        `json:"completed_qty"`
	ScrapQty     int        `json:"scrap_qty"`
	DueDate      time.Time  `json:"due_date"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Delivered reports whether the order has shipped.
func (w *WorkOrder) Delivered() bool {
	return w.DeliveredAt != nil
}
