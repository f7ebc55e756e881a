package model

import "time"

type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category,omitempty"`
	Type        string    `db:"type" json:"type,omitempty"`
	IsEmergency bool      `db:"is_emergency" json:"isEmergency"`
	CreatedBy   string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
