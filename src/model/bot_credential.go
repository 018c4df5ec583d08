package model

import "time"

const EnvironmentProduction = "production"

// BotCredential is a per-user, per-exchange API secret bundle. Key, secret and
// passphrase are stored AES-GCM encrypted; the webhook secret is used to
// resolve the owning user on inbound bot webhooks.
type BotCredential struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_user_exchange_env" json:"user_id"`
	Exchange       string    `gorm:"size:50;not null;uniqueIndex:idx_user_exchange_env" json:"exchange"`
	Environment    string    `gorm:"size:30;not null;default:production;uniqueIndex:idx_user_exchange_env" json:"environment"`
	Label          string    `gorm:"size:100" json:"label"`
	AccountID      string    `gorm:"size:100" json:"account_id,omitempty"`
	APIKeyHash     string    `gorm:"column:api_key;type:text" json:"-"`
	APISecretHash  string    `gorm:"column:api_secret;type:text" json:"-"`
	PassphraseHash string    `gorm:"column:api_passphrase;type:text" json:"-"`
	WebhookSecret  string    `gorm:"size:100;index" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (BotCredential) TableName() string {
	return "bot_credentials"
}
