package cache

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"notes-api/internal/models"
	"notes-api/internal/query"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
)

// NoteList is a cached page of a note listing.
type NoteList struct {
	Notes []*models.Note `json:"notes"`
	Meta  query.PageMeta `json:"meta"`
}

// NoteCache caches note listings, single notes and tag lists per owner. A nil
// *NoteCache is valid and caches nothing.
type NoteCache struct {
	store *Store
	ttl   time.Duration
}

func NewNoteCache(s *Store, ttl time.Duration) *NoteCache {
	if s == nil {
		return nil
	}
	return &NoteCache{store: s, ttl: ttl}
}

func ownerTag(userID int64) string {
	return fmt.Sprintf("notes:user:%d", userID)
}

// ListKey identifies one listing: scope is the endpoint variant (all, search,
// sort:<mode>) and values its query string.
func ListKey(userID int64, scope string, values url.Values) string {
	return fmt.Sprintf("notes:list:user:%d:%s:%s", userID, scope, listQueryKey(values))
}

func NoteKey(noteID, userID int64) string {
	return fmt.Sprintf("notes:detail:note:%d:user:%d", noteID, userID)
}

func TagsKey(userID int64) string {
	return fmt.Sprintf("notes:tags:user:%d", userID)
}

func (c *NoteCache) set(ctx context.Context, userID int64, key string, value any) {
	if c == nil {
		return
	}
	err := setJSON(ctx, c.store, key, value,
		store.WithExpiration(c.ttl),
		store.WithTags([]string{ownerTag(userID)}),
	)
	if err != nil {
		log.Warn("Failed to cache value", "key", key, "error", err)
	}
}

func (c *NoteCache) GetList(ctx context.Context, key string) (*NoteList, bool) {
	if c == nil {
		return nil, false
	}
	var list NoteList
	if !getJSON(ctx, c.store, key, &list) {
		return nil, false
	}
	return &list, true
}

func (c *NoteCache) SetList(ctx context.Context, userID int64, key string, list *NoteList) {
	c.set(ctx, userID, key, list)
}

func (c *NoteCache) GetNote(ctx context.Context, noteID, userID int64) (*models.Note, bool) {
	if c == nil {
		return nil, false
	}
	var note models.Note
	if !getJSON(ctx, c.store, NoteKey(noteID, userID), &note) {
		return nil, false
	}
	return &note, true
}

func (c *NoteCache) SetNote(ctx context.Context, note *models.Note) {
	c.set(ctx, note.Owner, NoteKey(note.ID, note.Owner), note)
}

func (c *NoteCache) GetTags(ctx context.Context, userID int64) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	var tags []string
	if !getJSON(ctx, c.store, TagsKey(userID), &tags) {
		return nil, false
	}
	return tags, true
}

func (c *NoteCache) SetTags(ctx context.Context, userID int64, tags []string) {
	c.set(ctx, userID, TagsKey(userID), tags)
}

// InvalidateUser drops every cached listing, note and tag list of the user.
func (c *NoteCache) InvalidateUser(ctx context.Context, userID int64) {
	if c == nil {
		return
	}
	if err := c.store.Invalidate(ctx, store.WithInvalidateTags([]string{ownerTag(userID)})); err != nil {
		log.Warn("Failed to invalidate note cache", "user_id", userID, "error", err)
	}
}
