package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotACommand means the text has no recognised keyword and should be
	// treated as a conversational message.
	ErrNotACommand    = errors.New("command: not a command")
	ErrInvalidPayload = errors.New("command: invalid payload")
	ErrUnknownCommand = errors.New("command: unknown command type")
)

type Kind string

const (
	KindUpdateContent Kind = "update_content"
	KindAddProject    Kind = "add_project"
	KindUpdateProject Kind = "update_project"
	KindDeleteProject Kind = "delete_project"
)

// Sections that update_content may overwrite.
const (
	SectionAbout      = "about"
	SectionProjects   = "projects"
	SectionExperience = "experience"
	SectionSkills     = "skills"
)

func ValidSection(s string) bool {
	switch s {
	case SectionAbout, SectionProjects, SectionExperience, SectionSkills:
		return true
	}
	return false
}

// Command is one admin mutation. The set of implementations is closed.
type Command interface {
	Kind() Kind
	Validate() error
	isCommand()
}

type UpdateContent struct {
	Section string `json:"section"`
	Content string `json:"content"`
}

type AddProject struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Image        *string  `json:"image,omitempty"`
}

// UpdateProject carries only the fields to overwrite; nil means keep.
type UpdateProject struct {
	ID           string    `json:"id"`
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Technologies *[]string `json:"technologies,omitempty"`
	Image        *string   `json:"image,omitempty"`
}

type DeleteProject struct {
	ID string `json:"id"`
}

func (UpdateContent) Kind() Kind { return KindUpdateContent }
func (AddProject) Kind() Kind    { return KindAddProject }
func (UpdateProject) Kind() Kind { return KindUpdateProject }
func (DeleteProject) Kind() Kind { return KindDeleteProject }

func (UpdateContent) isCommand() {}
func (AddProject) isCommand()    {}
func (UpdateProject) isCommand() {}
func (DeleteProject) isCommand() {}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func (c UpdateContent) Validate() error {
	if !ValidSection(c.Section) {
		return invalid("unknown section %q", c.Section)
	}
	if strings.TrimSpace(c.Content) == "" {
		return invalid("content is required")
	}
	return nil
}

func (c AddProject) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return invalid("title is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return invalid("description is required")
	}
	return validTechnologies(c.Technologies)
}

func (c UpdateProject) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("id is required")
	}
	if c.Title == nil && c.Description == nil && c.Technologies == nil && c.Image == nil {
		return invalid("no fields to update")
	}
	if c.Title != nil && strings.TrimSpace(*c.Title) == "" {
		return invalid("title cannot be empty")
	}
	if c.Description != nil && strings.TrimSpace(*c.Description) == "" {
		return invalid("description cannot be empty")
	}
	if c.Technologies != nil {
		return validTechnologies(*c.Technologies)
	}
	return nil
}

func (c DeleteProject) Validate() error {
	id := strings.TrimSpace(c.ID)
	if id == "" {
		return invalid("id is required")
	}
	if strings.ContainsAny(id, " \t\r\n") {
		return invalid("id must be a single token")
	}
	return nil
}

func validTechnologies(tags []string) error {
	for i, t := range tags {
		if strings.TrimSpace(t) == "" {
			return invalid("technologies[%d] is empty", i)
		}
	}
	return nil
}
