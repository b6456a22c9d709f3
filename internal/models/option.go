package models

// OptionModel is a key-value store for runtime state that must survive restarts:
// the persisted FullConfig, the style profile document, and the lesson id counter.
type OptionModel struct {
	Base
	Name  string `json:"name"  gorm:"uniqueIndex;not null"`
	Value string `json:"value" gorm:"type:longtext"`
}

func (OptionModel) TableName() string { return "options" }
