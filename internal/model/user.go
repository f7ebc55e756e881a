package model

import "time"

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleWarehouseStaff Role = "warehouseStaff"
	RoleMarketer       Role = "marketer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWarehouseStaff, RoleMarketer:
		return true
	}
	return false
}

type User struct {
	ID            string           `json:"id"`
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	PasswordHash  string           `json:"-"`
	Role          Role             `json:"role"`
	Phone         string           `json:"phone,omitempty"`
	WhatsAppOptIn bool             `json:"whatsappOptIn"`
	QuickBooks    *QuickBooksToken `json:"-"`
}

// QuickBooksToken is the OAuth bundle persisted on the connecting user.
type QuickBooksToken struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	RealmID      string    `json:"realmId"`
	Expiry       time.Time `json:"expiry"`
	Connected    bool      `json:"connected"`
}
