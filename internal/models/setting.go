package models

// RuntimeSettingsKey is the key under which the runtime settings blob is
// stored. There is exactly one row.
const RuntimeSettingsKey = "runtime"

// Setting stores the runtime settings as a single versionless key-value blob.
// The value is a JSON document owned by the settings manager.
type Setting struct {
	BaseModel

	Key   string `gorm:"not null;uniqueIndex;size:64" json:"key"`
	Value string `gorm:"not null" json:"value"`
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "settings"
}
