package models

import "time"

// ViewItemModel is one entry listed by a view.
type ViewItemModel struct {
	Base
	ViewID uint              `json:"view_id" gorm:"index;not null"`
	Title  string            `json:"title"   gorm:"not null"`
	Text   string            `json:"text"    gorm:"type:longtext"`
	Author string            `json:"author"  gorm:"size:191;index"`
	Type   string            `json:"type"    gorm:"size:64;index"`
	Date   time.Time         `json:"date"    gorm:"index"`
	Order  int               `json:"order"   gorm:"column:menu_order;default:0"`
	Fields map[string]string `json:"fields,omitempty" gorm:"type:longtext;serializer:json"`
}

func (ViewItemModel) TableName() string { return "view_items" }
