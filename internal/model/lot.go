package model

import (
	"strings"
	"time"
)

type LotStatus string

const (
	LotStatusAvailable LotStatus = "Available"
	LotStatusReserved  LotStatus = "Reserved"
	LotStatusSold      LotStatus = "Sold"
	LotStatusDamaged   LotStatus = "Damaged"
	LotStatusReturned  LotStatus = "Returned"
	LotStatusDepleted  LotStatus = "Depleted"
)

// LowStockLabel is a view-level label, never persisted.
const LowStockLabel = "Low Stock"

var lotStatuses = []LotStatus{
	LotStatusAvailable,
	LotStatusReserved,
	LotStatusSold,
	LotStatusDamaged,
	LotStatusReturned,
	LotStatusDepleted,
}

// ParseLotStatus is case-insensitive and accepts "Active" as an alias of Available.
func ParseLotStatus(value string) (LotStatus, bool) {
	trimmed := strings.TrimSpace(value)
	if strings.EqualFold(trimmed, "active") {
		return LotStatusAvailable, true
	}
	for _, s := range lotStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, true
		}
	}
	return "", false
}

// StatusAfterOutbound is the only transition the stock engine drives.
func StatusAfterOutbound(newStock float64) LotStatus {
	if newStock <= 0 {
		return LotStatusDepleted
	}
	return LotStatusAvailable
}

type Lot struct {
	ID             string     `db:"id" json:"id"`
	LotID          string     `db:"lot_id" json:"lotId"`
	Product        string     `db:"product" json:"product"`
	Provider       string     `db:"provider" json:"provider,omitempty"`
	Grade          string     `db:"grade" json:"grade,omitempty"`
	Brand          string     `db:"brand" json:"brand,omitempty"`
	Origin         string     `db:"origin" json:"origin,omitempty"`
	Condition      string     `db:"condition" json:"condition,omitempty"`
	ProductionDate *time.Time `db:"production_date" json:"productionDate,omitempty"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expirationDate,omitempty"`
	UnitPrice      float64    `db:"unit_price" json:"unitPrice"`
	QtyReceived    float64    `db:"qty_received" json:"qtyReceived"`
	CurrentStock   float64    `db:"current_stock" json:"currentStock"`
	TotalSold      float64    `db:"total_sold" json:"totalSold"`
	Status         LotStatus  `db:"status" json:"status"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
	VoiceNoteURL   string     `db:"voice_note_url" json:"voiceNoteUrl,omitempty"`
	InvoiceURL     string     `db:"invoice_url" json:"invoiceUrl,omitempty"`
	ArrivalDate    time.Time  `db:"arrival_date" json:"arrivalDate"`
	CreatedBy      string     `db:"created_by" json:"createdBy,omitempty"`
}

func (l *Lot) IsLowStock(threshold float64) bool {
	return l.Status == LotStatusAvailable && l.CurrentStock < threshold
}

// DisplayStatus returns the label shown in listings.
func (l *Lot) DisplayStatus(threshold float64) string {
	if l.IsLowStock(threshold) {
		return LowStockLabel
	}
	return string(l.Status)
}
