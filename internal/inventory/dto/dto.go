package dto

import (
	"time"

	"github.com/farm2markets/xprestrack/internal/model"
)

// LotFilters is what the repositories understand. Zero values match everything.
type LotFilters struct {
	Status        model.LotStatus
	ExcludeStatus model.LotStatus
	InStock       bool
	Product       string
}

// LotQuery is the raw listing request. Status may be any lot status, the
// "Active" alias, or the "Low Stock" view.
type LotQuery struct {
	Status  string
	Product string
}

type SaleFilters struct {
	LotID string
	Since *time.Time
}

type LotView struct {
	model.Lot
	DisplayStatus string `json:"displayStatus"`
	LowStock      bool   `json:"lowStock"`
}

type OutboundResult struct {
	Sale           *model.Sale     `json:"sale"`
	RemainingStock float64         `json:"remainingStock"`
	Status         model.LotStatus `json:"status"`
}

type InboundResult struct {
	Lot          *model.Lot `json:"lot"`
	VoiceNoteURL string     `json:"voiceNoteUrl,omitempty"`
	InvoiceURL   string     `json:"invoiceUrl,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type Dashboard struct {
	TotalLots      int         `json:"totalLots"`
	AvailableLots  int         `json:"availableLots"`
	DepletedLots   int         `json:"depletedLots"`
	LowStockLots   int         `json:"lowStockLots"`
	StockOnHand    float64     `json:"stockOnHand"`
	TotalReceived  float64     `json:"totalReceived"`
	TotalSold      float64     `json:"totalSold"`
	StockValue     float64     `json:"stockValue"`
	SalesToday     int         `json:"salesToday"`
	WeightOutToday float64     `json:"weightOutToday"`
	LowStock       []model.Lot `json:"lowStock"`
}

// SaleRecordedPayload is published on the events topic after an outbound.
type SaleRecordedPayload struct {
	SaleID         string          `json:"sale_id"`
	LotID          string          `json:"lot_id"`
	WeightOut      float64         `json:"weight_out"`
	Pieces         int             `json:"pieces"`
	RemainingStock float64         `json:"remaining_stock"`
	Status         model.LotStatus `json:"status"`
	ProcessedBy    string          `json:"processed_by,omitempty"`
}

type LotReceivedPayload struct {
	LotID       string  `json:"lot_id"`
	Product     string  `json:"product"`
	QtyReceived float64 `json:"qty_received"`
	Provider    string  `json:"provider,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
}
