package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"notes-api/internal/config"
	"notes-api/internal/models"
	"notes-api/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToMemory(t *testing.T) {
	s, err := New(context.Background(), &config.Config{CacheType: config.CacheTypeMemory})
	require.NoError(t, err)
	assert.NoError(t, s.Health(context.Background()))
	assert.NoError(t, s.Close())
}

func TestListKeyIgnoresParameterOrder(t *testing.T) {
	a, err := url.ParseQuery("page=2&tags=work&q=milk")
	require.NoError(t, err)
	b, err := url.ParseQuery("q=milk&page=2&tags=work")
	require.NoError(t, err)

	assert.Equal(t, ListKey(1, "search", a), ListKey(1, "search", b))
	assert.NotEqual(t, ListKey(1, "search", a), ListKey(2, "search", a))
	assert.NotEqual(t, ListKey(1, "search", a), ListKey(1, "sort:title", a))
}

func TestNoteCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewNoteCache(NewMemoryStore(), time.Minute)

	key := ListKey(1, "all", url.Values{})
	_, ok := c.GetList(ctx, key)
	assert.False(t, ok)

	note := &models.Note{ID: 5, Owner: 1, Title: "Cached", Tags: []string{"a"}, Priority: models.PriorityHigh}
	c.SetList(ctx, 1, key, &NoteList{
		Notes: []*models.Note{note},
		Meta:  query.PageMeta{Page: 1, Limit: 10, TotalPages: 1, TotalNotes: 1},
	})
	c.SetNote(ctx, note)
	c.SetTags(ctx, 1, []string{"a"})

	list, ok := c.GetList(ctx, key)
	require.True(t, ok)
	require.Len(t, list.Notes, 1)
	assert.Equal(t, "Cached", list.Notes[0].Title)
	assert.Equal(t, 1, list.Meta.TotalNotes)

	cached, ok := c.GetNote(ctx, 5, 1)
	require.True(t, ok)
	assert.Equal(t, models.PriorityHigh, cached.Priority)

	_, ok = c.GetNote(ctx, 5, 2)
	assert.False(t, ok)

	tags, ok := c.GetTags(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, tags)
}

func TestInvalidateUserOnlyDropsThatUser(t *testing.T) {
	ctx := context.Background()
	c := NewNoteCache(NewMemoryStore(), time.Minute)

	mine := ListKey(1, "all", url.Values{})
	theirs := ListKey(2, "all", url.Values{})
	c.SetList(ctx, 1, mine, &NoteList{Notes: []*models.Note{}})
	c.SetList(ctx, 2, theirs, &NoteList{Notes: []*models.Note{}})
	c.SetTags(ctx, 1, []string{"x"})

	c.InvalidateUser(ctx, 1)

	_, ok := c.GetList(ctx, mine)
	assert.False(t, ok)
	_, ok = c.GetTags(ctx, 1)
	assert.False(t, ok)
	_, ok = c.GetList(ctx, theirs)
	assert.True(t, ok)
}

func TestNilNoteCacheIsANoop(t *testing.T) {
	ctx := context.Background()
	var c *NoteCache
	assert.Nil(t, NewNoteCache(nil, time.Minute))

	c.SetNote(ctx, &models.Note{ID: 1, Owner: 1})
	c.InvalidateUser(ctx, 1)
	_, ok := c.GetNote(ctx, 1, 1)
	assert.False(t, ok)
}

func TestRevocationList(t *testing.T) {
	ctx := context.Background()
	r := NewRevocationList(NewMemoryStore())

	assert.False(t, r.IsRevoked(ctx, "abc"))
	require.NoError(t, r.Revoke(ctx, "abc", time.Hour))
	assert.True(t, r.IsRevoked(ctx, "abc"))
	assert.False(t, r.IsRevoked(ctx, "other"))

	// already expired tokens need no entry
	require.NoError(t, r.Revoke(ctx, "old", 0))
	assert.False(t, r.IsRevoked(ctx, "old"))
}

func TestRevocationExpires(t *testing.T) {
	ctx := context.Background()
	r := NewRevocationList(NewMemoryStore())

	require.NoError(t, r.Revoke(ctx, "short", 50*time.Millisecond))
	assert.True(t, r.IsRevoked(ctx, "short"))
	assert.Eventually(t, func() bool { return !r.IsRevoked(ctx, "short") }, time.Second, 10*time.Millisecond)
}
