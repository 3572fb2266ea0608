package models

import (
	"time"

	"gorm.io/gorm"
)

// Base is the base model for all entities. IDs are numeric so that directives can
// reference views as id="42".
type Base struct {
	ID        uint           `json:"id"       gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"modified"`
	DeletedAt gorm.DeletedAt `json:"-"        gorm:"index"`
}
