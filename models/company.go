package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company is a tenant. The slug is the first meaningful label of the
// tenant's subdomain (acme.portal.example.com -> "acme") and scopes
// every work order, note and photo.
type Company struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string         `gorm:"size:63;uniqueIndex;not null" json:"slug"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Settings  datatypes.JSON `gorm:"type:jsonb" json:"settings,omitempty"` // tenant-specific UI/branding knobs
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Users      []User      `gorm:"foreignKey:CompanyID" json:"-"`
	WorkOrders []WorkOrder `gorm:"foreignKey:CompanyID" json:"-"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
