package dto

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SettingsInput is a partial update; nil fields are left untouched.
type SettingsInput struct {
	Phone         *string `json:"phone"`
	WhatsAppOptIn *bool   `json:"whatsappOptIn"`
}
