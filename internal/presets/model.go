package presets

// Preset is a reusable named prompt and custom-text pairing offered to operators.
type Preset struct {
	ID         string `gorm:"column:id;primaryKey;size:190;not null"`
	Name       string `gorm:"column:name;size:190;not null;uniqueIndex:idx_presets_name"`
	Prompt     string `gorm:"column:prompt;type:text;not null"`
	CustomText string `gorm:"column:custom_text;type:text;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (Preset) TableName() string {
	return "presets"
}
