package dto

import (
	"math"
	"strings"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/attachment"
)

// OutboundInput removes WeightOut pounds from the lot identified by LotID.
// Client, price, notes and Metadata are passed through to the sale unvalidated.
type OutboundInput struct {
	LotID         string         `json:"lotId"`
	WeightOut     float64        `json:"weightOut"`
	Pieces        int            `json:"pieces"`
	Client        string         `json:"client"`
	ProposedPrice float64        `json:"proposedPrice"`
	Notes         string         `json:"notes"`
	VoiceNoteURL  string         `json:"voiceNoteUrl"`
	Metadata      map[string]any `json:"metadata"`
	ProcessedBy   string         `json:"-"`
}

type InboundInput struct {
	ProductName    string
	LotID          string
	QtyReceived    float64
	Provider       string
	Grade          string
	Brand          string
	Origin         string
	Condition      string
	ProductionDate *time.Time
	ExpirationDate *time.Time
	UnitPrice      float64
	Notes          string
	ArrivalDate    time.Time
	VoiceNote      *attachment.File
	Invoice        *attachment.File
	CreatedBy      string
}

// Validate checks the fields that need no store lookup.
func (in *InboundInput) Validate() error {
	switch qty := in.QtyReceived; {
	case strings.TrimSpace(in.ProductName) == "":
		return apperr.Validation("product is required")
	case strings.TrimSpace(in.LotID) == "":
		return apperr.Validation("lotId is required")
	case qty <= 0 || math.IsInf(qty, 0) || math.IsNaN(qty):
		return apperr.Validation("qtyReceived must be a number greater than 0")
	case in.UnitPrice < 0:
		return apperr.Validation("unitPrice must not be negative")
	}
	return nil
}
