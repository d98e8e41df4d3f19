package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/folio/internal/common"
	"github.com/suPer8Hu/folio/internal/content"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50

	MaxCommentLength = 1000
	MaxNameLength    = 100
	MaxTagLength     = 64

	maxTitleLength = 255
	maxSlugLength  = 191
)

// Activity actions recorded for admin blog changes.
const (
	ActionCreate  = "create_post"
	ActionUpdate  = "update_post"
	ActionDelete  = "delete_post"
	ActionPublish = "publish_post"
)

var (
	ErrNotFound  = errors.New("blog: not found")
	ErrSlugTaken = errors.New("blog: slug already in use")
	ErrInvalid   = errors.New("blog: invalid input")
)

// InputError is a caller mistake; Reason is safe to show to the client.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string        { return "blog: " + e.Reason }
func (e *InputError) Is(target error) bool { return target == ErrInvalid }

func invalid(reason string) error { return &InputError{Reason: reason} }

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Draft is a new post. An empty Slug is derived from Title.
type Draft struct {
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Content    string   `json:"content"`
	Excerpt    *string  `json:"excerpt"`
	Tags       []string `json:"tags"`
	CoverImage *string  `json:"coverImage"`
}

// Patch changes only the fields that are set. An empty Excerpt or CoverImage clears it.
type Patch struct {
	Title      *string   `json:"title"`
	Slug       *string   `json:"slug"`
	Content    *string   `json:"content"`
	Excerpt    *string   `json:"excerpt"`
	Tags       *[]string `json:"tags"`
	CoverImage *string   `json:"coverImage"`
}

type ListOptions struct {
	Page  int
	Limit int
	Tag   string
}

type NewComment struct {
	PostID   string  `json:"postId"`
	ParentID *string `json:"parentId"`
	Name     string  `json:"name"`
	Content  string  `json:"content"`
}

type Service struct {
	db  *gorm.DB
	pub content.EventPublisher
	now func() time.Time
}

func NewService(db *gorm.DB, pub content.EventPublisher) *Service {
	return &Service{db: db, pub: pub, now: time.Now}
}

// ListPublished pages through published posts, newest first, optionally
// restricted to one tag.
func (s *Service) ListPublished(ctx context.Context, opts ListOptions) ([]Post, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > MaxPageSize {
		opts.Limit = DefaultPageSize
	}
	q := s.db.WithContext(ctx).Where("status = ?", StatusPublished)
	if tag := strings.ToLower(strings.TrimSpace(opts.Tag)); tag != "" {
		q = q.Where("tags LIKE ? ESCAPE '!'", tagPattern(tag))
	}
	out := []Post{}
	err := q.Order("published_at DESC").Order("id ASC").
		Offset((opts.Page - 1) * opts.Limit).
		Limit(opts.Limit).
		Find(&out).Error
	return out, err
}

// tagPattern matches one element of the JSON-encoded tags column.
func tagPattern(tag string) string {
	b, _ := json.Marshal(tag)
	return "%" + strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(string(b)) + "%"
}

// ListAll returns every post including drafts, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Post, error) {
	out := []Post{}
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Service) findPublished(ctx context.Context, db *gorm.DB, column, value string) (*Post, error) {
	var p Post
	err := db.WithContext(ctx).Where(column+" = ? AND status = ?", value, StatusPublished).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPublished returns a published post by slug and counts the view.
// Drafts are not visible here.
func (s *Service) GetPublished(ctx context.Context, slug string) (*Post, error) {
	p, err := s.findPublished(ctx, s.db, "slug", slug)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&Post{ID: p.ID}).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1)).Error
	if err != nil {
		return nil, err
	}
	p.ViewsCount++
	return p, nil
}

// Comments returns the post's comments as threads in posting order.
func (s *Service) Comments(ctx context.Context, slug string) ([]*Comment, error) {
	p, err := s.findPublished(ctx, s.db, "slug", slug)
	if err != nil {
		return nil, err
	}
	var rows []Comment
	err = s.db.WithContext(ctx).Where("post_id = ?", p.ID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return thread(rows), nil
}

func thread(rows []Comment) []*Comment {
	byID := make(map[string]*Comment, len(rows))
	for i := range rows {
		rows[i].Replies = []*Comment{}
		byID[rows[i].ID] = &rows[i]
	}
	roots := []*Comment{}
	for i := range rows {
		c := &rows[i]
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok && parent != c {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

// AddComment stores an anonymous comment on a published post. A reply must
// point at a comment of the same post.
func (s *Service) AddComment(ctx context.Context, in NewComment) (*Comment, error) {
	c := &Comment{
		PostID:  strings.TrimSpace(in.PostID),
		Name:    strings.TrimSpace(in.Name),
		Content: strings.TrimSpace(in.Content),
	}
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		pid := strings.TrimSpace(*in.ParentID)
		c.ParentID = &pid
	}
	if err := ValidateComment(c); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findPublished(ctx, tx, "id", c.PostID); err != nil {
			return err
		}
		if c.ParentID != nil {
			var n int64
			err := tx.Model(&Comment{}).Where("id = ? AND post_id = ?", *c.ParentID, c.PostID).Count(&n).Error
			if err != nil {
				return err
			}
			if n == 0 {
				return invalid("parent comment not found on this post")
			}
		}
		c.ID = uuid.NewString()
		c.CreatedAt = s.now().UTC()
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	c.Replies = []*Comment{}
	return c, nil
}

func ValidateComment(c *Comment) error {
	if c.PostID == "" || c.Name == "" || c.Content == "" {
		return invalid("postId, name, and content are required")
	}
	if utf8.RuneCountInString(c.Name) > MaxNameLength {
		return invalid(fmt.Sprintf("name must be under %d characters", MaxNameLength))
	}
	if utf8.RuneCountInString(c.Content) > MaxCommentLength {
		return invalid(fmt.Sprintf("comment must be under %d characters", MaxCommentLength))
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, slug string) (*Stats, error) {
	p, err := s.findPublished(ctx, s.db, "slug", slug)
	if err != nil {
		return nil, err
	}
	st := &Stats{ID: p.ID, Title: p.Title, Slug: p.Slug, PublishedAt: p.PublishedAt, ViewsCount: p.ViewsCount}
	if err := s.db.WithContext(ctx).Model(&Comment{}).Where("post_id = ?", p.ID).Count(&st.CommentsCount).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// Create stores a draft authored by actor.
func (s *Service) Create(ctx context.Context, actor string, d Draft) (*Post, error) {
	title := strings.TrimSpace(d.Title)
	body := strings.TrimSpace(d.Content)
	if title == "" || body == "" {
		return nil, invalid("title and content are required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, invalid("title is too long")
	}
	slug := strings.TrimSpace(d.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(d.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Post{
		ID:         uuid.NewString(),
		Title:      title,
		Slug:       slug,
		Content:    body,
		Excerpt:    nonEmpty(d.Excerpt),
		AuthorID:   actor,
		Tags:       tags,
		CoverImage: nonEmpty(d.CoverImage),
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.record(ctx, actor, ActionCreate, func(tx *gorm.DB) (string, error) {
		if err := slugFree(ctx, tx, slug, ""); err != nil {
			return "", err
		}
		if err := tx.Create(p).Error; err != nil {
			return "", err
		}
		return fmt.Sprintf("created draft %s (%s)", p.ID, p.Slug), nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update merges the set fields of patch over the stored post.
func (s *Service) Update(ctx context.Context, actor, id string, patch Patch) (*Post, error) {
	var p Post
	err := s.record(ctx, actor, ActionUpdate, func(tx *gorm.DB) (string, error) {
		if err := getPost(ctx, tx, id, &p); err != nil {
			return "", err
		}
		columns, err := applyPatch(&p, patch)
		if err != nil {
			return "", err
		}
		if patch.Slug != nil {
			if err := slugFree(ctx, tx, p.Slug, p.ID); err != nil {
				return "", err
			}
		}
		p.UpdatedAt = s.now().UTC()
		if err := tx.Model(&Post{ID: p.ID}).Select(append(columns, "updated_at")).Updates(&p).Error; err != nil {
			return "", err
		}
		return fmt.Sprintf("updated post %s (%s)", p.ID, strings.Join(columns, ", ")), nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func applyPatch(p *Post, patch Patch) ([]string, error) {
	var columns []string
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" || utf8.RuneCountInString(t) > maxTitleLength {
			return nil, invalid("title must be non-empty and at most 255 characters")
		}
		p.Title = t
		columns = append(columns, "title")
	}
	if patch.Slug != nil {
		slug := strings.TrimSpace(*patch.Slug)
		if err := validSlug(slug); err != nil {
			return nil, err
		}
		p.Slug = slug
		columns = append(columns, "slug")
	}
	if patch.Content != nil {
		b := strings.TrimSpace(*patch.Content)
		if b == "" {
			return nil, invalid("content must not be empty")
		}
		p.Content = b
		columns = append(columns, "content")
	}
	if patch.Excerpt != nil {
		p.Excerpt = nonEmpty(patch.Excerpt)
		columns = append(columns, "excerpt")
	}
	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		p.Tags = tags
		columns = append(columns, "tags")
	}
	if patch.CoverImage != nil {
		p.CoverImage = nonEmpty(patch.CoverImage)
		columns = append(columns, "cover_image")
	}
	if len(columns) == 0 {
		return nil, invalid("nothing to update")
	}
	return columns, nil
}

// Delete removes a post and its comments. Deleting an absent post succeeds.
func (s *Service) Delete(ctx context.Context, actor, id string) (bool, error) {
	var deleted bool
	err := s.record(ctx, actor, ActionDelete, func(tx *gorm.DB) (string, error) {
		if err := tx.Where("post_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return "", err
		}
		res := tx.Where("id = ?", id).Delete(&Post{})
		if res.Error != nil {
			return "", res.Error
		}
		deleted = res.RowsAffected > 0
		if !deleted {
			return fmt.Sprintf("delete post %s: already absent", id), nil
		}
		return fmt.Sprintf("deleted post %s", id), nil
	})
	return deleted, err
}

// Publish makes a post public. Republishing keeps the first publication time.
func (s *Service) Publish(ctx context.Context, actor, id string) (*Post, error) {
	var p Post
	err := s.record(ctx, actor, ActionPublish, func(tx *gorm.DB) (string, error) {
		if err := getPost(ctx, tx, id, &p); err != nil {
			return "", err
		}
		now := s.now().UTC()
		p.Status = StatusPublished
		if p.PublishedAt == nil {
			p.PublishedAt = &now
		}
		p.UpdatedAt = now
		err := tx.Model(&Post{ID: p.ID}).Select("status", "published_at", "updated_at").Updates(&p).Error
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("published post %s (%s)", p.ID, p.Slug), nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// record runs fn and appends its activity row in one transaction, then
// publishes the row.
func (s *Service) record(ctx context.Context, actor, action string, fn func(tx *gorm.DB) (string, error)) error {
	eventID, err := common.NewULID()
	if err != nil {
		return err
	}
	a := content.ActivityLog{EventID: eventID, Actor: actor, Action: action, CreatedAt: s.now().UTC()}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detail, err := fn(tx)
		if err != nil {
			return err
		}
		a.Detail = detail
		return content.NewRepo(tx).AppendActivity(ctx, &a)
	})
	if err != nil {
		return err
	}
	if s.pub != nil {
		if err := s.pub.PublishActivity(ctx, a); err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("publish activity failed")
		}
	}
	return nil
}

func getPost(ctx context.Context, tx *gorm.DB, id string, p *Post) error {
	err := tx.WithContext(ctx).Where("id = ?", id).First(p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func slugFree(ctx context.Context, tx *gorm.DB, slug, exceptID string) error {
	q := tx.WithContext(ctx).Model(&Post{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrSlugTaken
	}
	return nil
}

func validSlug(slug string) error {
	if slug == "" {
		return invalid("slug is required")
	}
	if len(slug) > maxSlugLength || !slugRe.MatchString(slug) {
		return invalid("slug must be lowercase letters, digits and single dashes")
	}
	return nil
}

// Slugify lowercases title and joins its ASCII letters and digits with dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	out := b.String()
	if len(out) > maxSlugLength {
		out = out[:maxSlugLength]
	}
	return strings.Trim(out, "-")
}

func normalizeTags(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return nil, invalid("tags must not be blank")
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, invalid("tag is too long")
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
