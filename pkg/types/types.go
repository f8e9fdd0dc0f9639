package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONMap is a custom type that can handle JSON serialization for both PostgreSQL and SQLite
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for GORM
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for GORM
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, j)
}

// ConnectedAccount represents a platform account linked through the OAuth flow.
// The access token is stored as issued by the platform; Beamup does not refresh
// or otherwise manage its lifecycle.
type ConnectedAccount struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey"`
	PlatformUserID string     `json:"platform_user_id" gorm:"uniqueIndex;not null"`
	Name           string     `json:"name"`
	AccessToken    string     `json:"-" gorm:"not null"`
	TokenExpiresAt *time.Time `json:"token_expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate generates a UUID for the account ID
func (a *ConnectedAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// PublishRecord represents a completed publish of a stored object to the platform
type PublishRecord struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey"`
	AccountID      uuid.UUID `json:"account_id" gorm:"not null;index"`
	ObjectKey      string    `json:"object_key" gorm:"not null"`
	RemoteObjectID string    `json:"remote_object_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Size           int64     `json:"size"`
	Metadata       JSONMap   `json:"metadata" gorm:"serializer:json"`
	CreatedAt      time.Time `json:"created_at"`
	Account        ConnectedAccount `json:"account" gorm:"foreignKey:AccountID"`
}

// BeforeCreate generates a UUID for the publish record ID
func (p *PublishRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PublishRequest is the body of a publish call
type PublishRequest struct {
	ObjectKey   string `json:"object_key" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// PresignRequest asks for a presigned upload URL for a source object
type PresignRequest struct {
	ObjectKey   string `json:"object_key" binding:"required"`
	ContentType string `json:"content_type"`
}

// PresignResponse carries the URL a client PUTs the object to
type PresignResponse struct {
	URL       string    `json:"url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
