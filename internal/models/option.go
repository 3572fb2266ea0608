package models

// OptionModel stores a single named setting, such as the applied schema version.
type OptionModel struct {
	Name  string `json:"name"  gorm:"primaryKey;size:191"`
	Value string `json:"value" gorm:"type:longtext"`
}

func (OptionModel) TableName() string { return "options" }
