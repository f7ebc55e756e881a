package model

import "time"

// Sale is one outbound movement against a single lot. Immutable once created.
type Sale struct {
	ID            string         `db:"id" json:"id"`
	SaleID        string         `db:"sale_id" json:"saleId"`
	LotRecordID   string         `db:"lot_record_id" json:"lotRecordId"`
	LotID         string         `db:"lot_id" json:"lotId"`
	WeightOut     float64        `db:"weight_out" json:"weightOut"`
	Pieces        int            `db:"pieces" json:"pieces"`
	Client        string         `db:"client" json:"client,omitempty"`
	ProposedPrice float64        `db:"proposed_price" json:"proposedPrice,omitempty"`
	Notes         string         `db:"notes" json:"notes,omitempty"`
	VoiceNoteURL  string         `db:"voice_note_url" json:"voiceNoteUrl,omitempty"`
	ProcessedBy   string         `db:"processed_by" json:"processedBy,omitempty"`
	SaleDate      time.Time      `db:"sale_date" json:"saleDate"`
	Metadata      map[string]any `db:"-" json:"metadata,omitempty"`
}
