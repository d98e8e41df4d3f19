package blog

import "time"

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type Post struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug        string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"slug"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Excerpt     *string    `gorm:"type:text" json:"excerpt,omitempty"`
	AuthorID    string     `gorm:"type:varchar(64);not null" json:"author_id"`
	Tags        []string   `gorm:"type:text;serializer:json" json:"tags"`
	CoverImage  *string    `gorm:"type:varchar(512)" json:"cover_image,omitempty"`
	Status      string     `gorm:"type:varchar(16);index;not null" json:"status"`
	ViewsCount  int64      `gorm:"not null;default:0" json:"views_count"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Post) TableName() string { return "blog_posts" }

// Comment is an anonymous visitor comment. Replies is filled when a thread is
// assembled and is not stored.
type Comment struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	PostID    string     `gorm:"type:varchar(36);index;not null" json:"post_id"`
	ParentID  *string    `gorm:"type:varchar(36);index" json:"parent_id,omitempty"`
	Name      string     `gorm:"type:varchar(100);not null" json:"name"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	Replies   []*Comment `gorm:"-" json:"replies"`
}

func (Comment) TableName() string { return "blog_comments" }

type Stats struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	ViewsCount    int64      `json:"views_count"`
	CommentsCount int64      `json:"comments_count"`
}

func Models() []any {
	return []any{&Post{}, &Comment{}}
}
