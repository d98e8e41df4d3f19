package content

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transact runs fn against a repo bound to one transaction.
func (r *Repo) Transact(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// PutSection overwrites the section text wholesale.
func (r *Repo) PutSection(ctx context.Context, s *Section) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).
		Create(s).Error
}

func (r *Repo) GetSection(ctx context.Context, name string) (*Section, error) {
	var s Section
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) CreateProject(ctx context.Context, p *Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProjectColumns writes only the named columns of p in a single
// statement, so concurrent edits of other columns are not overwritten.
func (r *Repo) UpdateProjectColumns(ctx context.Context, p *Project, columns []string) (int64, error) {
	// RowsAffected is driver dependent for unchanged rows; callers look the row up first.
	res := r.db.WithContext(ctx).
		Model(&Project{ID: p.ID}).
		Select(columns).
		Updates(p)
	return res.RowsAffected, res.Error
}

func (r *Repo) DeleteProject(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Project{})
	return res.RowsAffected, res.Error
}

// ListProjects returns projects in creation order.
func (r *Repo) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&out).Error
	return out, err
}

func (r *Repo) AppendActivity(ctx context.Context, a *ActivityLog) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// ListActivity returns the newest rows first.
func (r *Repo) ListActivity(ctx context.Context, limit int) ([]ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []ActivityLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
