package contact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

const (
	StatusPending = "pending"

	MaxMessageLength = 1000
)

var (
	ErrMissingFields = errors.New("contact: name, email, and message are required")
	ErrInvalidEmail  = errors.New("contact: invalid email format")
	ErrTooLong       = errors.New("contact: message must be under 1000 characters")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Submission struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);index;not null" json:"email"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Status    string    `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Submission) TableName() string { return "contact_submissions" }

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Submit trims and validates the form, then stores it as pending.
func (s *Service) Submit(ctx context.Context, name, email, message string) (*Submission, error) {
	sub := &Submission{
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Message: strings.TrimSpace(message),
		Status:  StatusPending,
	}
	if err := Validate(sub); err != nil {
		return nil, err
	}
	sub.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("contact: store submission: %w", err)
	}
	return sub, nil
}

func Validate(sub *Submission) error {
	if sub.Name == "" || sub.Email == "" || sub.Message == "" {
		return ErrMissingFields
	}
	if !emailRe.MatchString(sub.Email) {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(sub.Message) > MaxMessageLength {
		return ErrTooLong
	}
	return nil
}

// List returns the newest submissions first.
func (s *Service) List(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Submission
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
