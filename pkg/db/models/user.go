package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/enums"
)

// User is the customer/staff record referenced by orders. Credential and
// session management live in the external identity service; this table only
// carries what the storefront needs for ownership checks and receipts.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Username  string         `gorm:"column:username;not null;uniqueIndex" json:"username"`
	Email     string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Role      enums.UserRole `gorm:"column:role;not null;default:'customer'" json:"role"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
