package content

import "time"

type Section struct {
	Name      string    `gorm:"type:varchar(64);primaryKey" json:"section"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Section) TableName() string { return "content_sections" }

type Project struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title        string    `gorm:"type:varchar(255);not null" json:"title"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Technologies []string  `gorm:"type:text;serializer:json" json:"technologies"`
	Image        *string   `gorm:"type:varchar(512)" json:"image,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// ActivityLog is append-only; rows are never updated or deleted.
type ActivityLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"event_id"`
	Actor     string    `gorm:"type:varchar(64);not null" json:"actor"`
	Action    string    `gorm:"type:varchar(32);index;not null" json:"action"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

// Models lists every table this package owns, for migration.
func Models() []any {
	return []any{&Section{}, &Project{}, &ActivityLog{}}
}
