package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/folio/internal/command"
	"github.com/suPer8Hu/folio/internal/common"
)

var (
	ErrNotFound       = errors.New("content: not found")
	ErrInvalidPayload = errors.New("content: invalid payload")
)

// EventPublisher receives activity rows after their transaction commits.
type EventPublisher interface {
	PublishActivity(ctx context.Context, a ActivityLog) error
}

type Result struct {
	Type     command.Kind `json:"type"`
	Section  *Section     `json:"section,omitempty"`
	Project  *Project     `json:"project,omitempty"`
	Deleted  bool         `json:"deleted,omitempty"`
	Activity ActivityLog  `json:"activity"`
}

// Mutator applies admin commands to the content store. Each mutation and its
// activity row commit together or not at all.
type Mutator struct {
	repo *Repo
	pub  EventPublisher
	now  func() time.Time
}

func NewMutator(repo *Repo, pub EventPublisher) *Mutator {
	return &Mutator{repo: repo, pub: pub, now: time.Now}
}

func (m *Mutator) Apply(ctx context.Context, actor string, cmd command.Command) (*Result, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", ErrInvalidPayload)
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	eventID, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	res := &Result{Type: cmd.Kind()}
	err = m.repo.Transact(ctx, func(tx *Repo) error {
		detail, err := m.mutate(ctx, tx, cmd, now, res)
		if err != nil {
			return err
		}
		res.Activity = ActivityLog{
			EventID:   eventID,
			Actor:     actor,
			Action:    string(cmd.Kind()),
			Detail:    detail,
			CreatedAt: now,
		}
		return tx.AppendActivity(ctx, &res.Activity)
	})
	if err != nil {
		return nil, err
	}

	if m.pub != nil {
		if err := m.pub.PublishActivity(ctx, res.Activity); err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("publish activity failed")
		}
	}
	return res, nil
}

func (m *Mutator) mutate(ctx context.Context, tx *Repo, cmd command.Command, now time.Time, res *Result) (string, error) {
	switch c := cmd.(type) {
	case command.UpdateContent:
		s := &Section{Name: c.Section, Content: c.Content, UpdatedAt: now}
		if err := tx.PutSection(ctx, s); err != nil {
			return "", err
		}
		res.Section = s
		return fmt.Sprintf("updated %s section", c.Section), nil

	case command.AddProject:
		p := &Project{
			ID:           uuid.NewString(),
			Title:        c.Title,
			Description:  c.Description,
			Technologies: append([]string{}, c.Technologies...),
			Image:        nonEmpty(c.Image),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateProject(ctx, p); err != nil {
			return "", err
		}
		res.Project = p
		return fmt.Sprintf("added project %s (%s)", p.ID, p.Title), nil

	case command.UpdateProject:
		p, err := tx.GetProject(ctx, c.ID)
		if err != nil {
			return "", err
		}
		columns := []string{"updated_at"}
		if c.Title != nil {
			p.Title = *c.Title
			columns = append(columns, "title")
		}
		if c.Description != nil {
			p.Description = *c.Description
			columns = append(columns, "description")
		}
		if c.Technologies != nil {
			p.Technologies = append([]string{}, (*c.Technologies)...)
			columns = append(columns, "technologies")
		}
		if c.Image != nil {
			p.Image = nonEmpty(c.Image)
			columns = append(columns, "image")
		}
		p.UpdatedAt = now
		if _, err := tx.UpdateProjectColumns(ctx, p, columns); err != nil {
			return "", err
		}
		res.Project = p
		return fmt.Sprintf("updated project %s (%s)", p.ID, strings.Join(columns[1:], ", ")), nil

	case command.DeleteProject:
		n, err := tx.DeleteProject(ctx, c.ID)
		if err != nil {
			return "", err
		}
		res.Deleted = n > 0
		if !res.Deleted {
			return fmt.Sprintf("delete project %s: already absent", c.ID), nil
		}
		return fmt.Sprintf("deleted project %s", c.ID), nil
	}
	return "", fmt.Errorf("%w: %s", command.ErrUnknownCommand, cmd.Kind())
}

// nonEmpty maps an empty image reference to nil so it clears the column.
func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
