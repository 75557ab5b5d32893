package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"notes-api/internal/apperr"

	"github.com/samber/lo"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank maps a priority to its sort weight: low=1, medium=2, high=3.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

const (
	TitleMinLength = 2
	TitleMaxLength = 75
	MaxTags        = 20
	MaxTagLength   = 30
)

type Note struct {
	ID          int64     `json:"id"`
	Owner       int64     `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Priority    Priority  `json:"priority"`
	IsPinned    bool      `json:"isPinned"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateNoteRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Priority    Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	IsPinned    bool     `json:"isPinned"`
}

// Normalize trims the title, cleans the tag set and applies the default priority.
func (r *CreateNoteRequest) Normalize() error {
	title, err := normalizeTitle(r.Title)
	if err != nil {
		return err
	}
	r.Title = title

	tags, err := NormalizeTags(r.Tags)
	if err != nil {
		return err
	}
	r.Tags = tags

	if r.Priority == "" {
		r.Priority = PriorityLow
	}
	return nil
}

// UpdateNoteRequest is a merge patch: nil fields are left untouched.
// Owner is deliberately absent.
type UpdateNoteRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	Priority    *Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	IsPinned    *bool     `json:"isPinned"`
}

func (r *UpdateNoteRequest) Normalize() error {
	if r.Title != nil {
		title, err := normalizeTitle(*r.Title)
		if err != nil {
			return err
		}
		r.Title = &title
	}
	if r.Tags != nil {
		tags, err := NormalizeTags(*r.Tags)
		if err != nil {
			return err
		}
		r.Tags = &tags
	}
	return nil
}

func (r *UpdateNoteRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Tags == nil && r.Priority == nil && r.IsPinned == nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n < TitleMinLength || n > TitleMaxLength {
		return "", apperr.Validation(fmt.Sprintf(
			"Title is required, must be at least %d characters and less than %d characters",
			TitleMinLength, TitleMaxLength))
	}
	return title, nil
}

// NormalizeTags trims entries, drops empty ones and collapses duplicates.
// The result is never nil so it always serializes as an array.
func NormalizeTags(tags []string) ([]string, error) {
	cleaned := lo.Uniq(lo.FilterMap(tags, func(tag string, _ int) (string, bool) {
		tag = strings.TrimSpace(tag)
		return tag, tag != ""
	}))
	if len(cleaned) > MaxTags {
		return nil, apperr.Validation(fmt.Sprintf("A note can have at most %d tags", MaxTags))
	}
	for _, tag := range cleaned {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, apperr.Validation(fmt.Sprintf("Tags must be at most %d characters long", MaxTagLength))
		}
	}
	if cleaned == nil {
		cleaned = []string{}
	}
	return cleaned, nil
}
