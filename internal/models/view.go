package models

import "github.com/mx-space/viewblock/internal/viewblock"

// View kinds, matching the three published view lists of the editor.
const (
	ViewKindPosts    = "posts"
	ViewKindTaxonomy = "taxonomy"
	ViewKindUsers    = "users"
)

// View statuses.
const (
	ViewStatusPublish = "publish"
	ViewStatusDraft   = "draft"
	ViewStatusTrash   = "trash"
)

// ViewModel is a persisted query-and-template definition.
type ViewModel struct {
	Base
	Name   string `json:"post_name"  gorm:"uniqueIndex;size:191;not null"`
	Title  string `json:"post_title" gorm:"not null"`
	Kind   string `json:"kind"       gorm:"size:32;index;default:posts"`
	Status string `json:"status"     gorm:"size:32;index;default:publish"`

	Limit            int    `json:"limit"            gorm:"default:-1"`
	Offset           int    `json:"offset"           gorm:"default:0"`
	Orderby          string `json:"orderby"          gorm:"size:64;default:post_date"`
	Order            string `json:"order"            gorm:"column:order_dir;size:8;default:desc"`
	SecondaryOrderby string `json:"secondaryOrderby" gorm:"size:64"`
	SecondaryOrder   string `json:"secondaryOrder"   gorm:"size:8"`

	FormControls    bool                       `json:"hasCustomSearch"    gorm:"default:false"`
	FormSubmit      bool                       `json:"hasSubmit"          gorm:"default:false"`
	ExtraAttributes []viewblock.ExtraAttribute `json:"hasExtraAttributes" gorm:"type:longtext;serializer:json"`

	ExtraCSS     string `json:"extra_css"     gorm:"type:longtext"`
	ItemTemplate string `json:"item_template" gorm:"type:longtext"`

	Items []ViewItemModel `json:"items,omitempty" gorm:"foreignKey:ViewID"`
}

func (ViewModel) TableName() string { return "views" }

// IsPublished reports whether the view appears in the editor's view lists.
func (v *ViewModel) IsPublished() bool { return v.Status == ViewStatusPublish }
