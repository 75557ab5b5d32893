package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"notes-api/internal/apperr"
	"notes-api/internal/config"
	"notes-api/internal/database"
	"notes-api/internal/models"
	"notes-api/internal/query"

	"github.com/go-sql-driver/mysql"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	ctx   context.Context
	db    *sql.DB
	users UserRepository
	notes NoteRepository
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := database.NewSQLiteConnection(s.ctx, ":memory:")
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db, config.DriverSQLite))

	s.db = db
	s.users = NewUserRepository(db)
	s.notes = NewNoteRepository(db)
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *RepositoryTestSuite) createUser(name string) *models.User {
	user, err := s.users.Create(s.ctx, name, name+"@example.com", "hash-"+name)
	s.Require().NoError(err)
	return user
}

func (s *RepositoryTestSuite) createNote(ownerID int64, req models.CreateNoteRequest) *models.Note {
	s.Require().NoError(req.Normalize())
	note, err := s.notes.Create(s.ctx, ownerID, &req)
	s.Require().NoError(err)
	return note
}

func (s *RepositoryTestSuite) titles(notes []*models.Note) []string {
	return lo.Map(notes, func(n *models.Note, _ int) string { return n.Title })
}

func (s *RepositoryTestSuite) list(ownerID int64, values url.Values) ([]*models.Note, int) {
	q, err := query.ParseSearch(values)
	s.Require().NoError(err)
	notes, total, err := s.notes.List(s.ctx, ownerID, q)
	s.Require().NoError(err)
	return notes, total
}

func (s *RepositoryTestSuite) TestFirstUserIsAdmin() {
	first := s.createUser("first")
	second := s.createUser("second")

	s.True(first.IsAdmin)
	s.False(second.IsAdmin)
}

func (s *RepositoryTestSuite) TestEmailIsStoredLowercased() {
	user, err := s.users.Create(s.ctx, "ada", "  Ada@Example.COM ", "hash")
	s.Require().NoError(err)
	s.Equal("ada@example.com", user.Email)

	found, err := s.users.GetByEmail(s.ctx, "ADA@example.com")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)

	exists, err := s.users.EmailExists(s.ctx, "ada@EXAMPLE.com", 0)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.users.EmailExists(s.ctx, "ada@example.com", user.ID)
	s.Require().NoError(err)
	s.False(exists)
}

func (s *RepositoryTestSuite) TestUniqueViolationsBecomeConflicts() {
	s.createUser("ada")

	_, err := s.users.Create(s.ctx, "ada", "other@example.com", "hash")
	s.True(apperr.Is(err, apperr.KindConflict))
	s.Equal("Username already taken", err.Error())

	_, err = s.users.Create(s.ctx, "grace", "ADA@example.com", "hash")
	s.True(apperr.Is(err, apperr.KindConflict))
	s.Equal("User already exists", err.Error())
}

func (s *RepositoryTestSuite) TestEmailResemblingUsernameKeyIsNotAUsernameClash() {
	s.createUser("ada")
	_, err := s.users.Create(s.ctx, "username", "username@example.com", "hash")
	s.Require().NoError(err)

	_, err = s.users.Create(s.ctx, "someone", "username@example.com", "hash")
	s.True(apperr.Is(err, apperr.KindConflict))
	s.Equal("User already exists", err.Error())
}

func TestDuplicateUserReadsTheViolatedKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "mysql email key with username-like value",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'username@x.com' for key 'users.uq_users_email'"},
			want: "User already exists",
		},
		{
			name: "mysql username key",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ada' for key 'users.uq_users_username'"},
			want: "Username already taken",
		},
		{
			name: "mysql value containing the key marker",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a for key username@x.com' for key 'users.uq_users_email'"},
			want: "User already exists",
		},
		{
			name: "unknown error",
			err:  fmt.Errorf("username exploded"),
			want: "User already exists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := duplicateUser(tt.err)
			assert.True(t, apperr.Is(err, apperr.KindConflict))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func (s *RepositoryTestSuite) TestGetMissingUser() {
	_, err := s.users.GetByID(s.ctx, 999)
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *RepositoryTestSuite) TestUpdateProfile() {
	ada := s.createUser("ada")
	s.createUser("grace")

	name := "countess"
	hash := "new-hash"
	updated, err := s.users.UpdateProfile(s.ctx, ada.ID, models.ProfileUpdate{Username: &name, PasswordHash: &hash})
	s.Require().NoError(err)
	s.Equal("countess", updated.Username)
	s.Equal("new-hash", updated.PasswordHash)
	s.Equal("ada@example.com", updated.Email)

	taken := "grace"
	_, err = s.users.UpdateProfile(s.ctx, ada.ID, models.ProfileUpdate{Username: &taken})
	s.True(apperr.Is(err, apperr.KindConflict))

	_, err = s.users.UpdateProfile(s.ctx, 999, models.ProfileUpdate{Username: &name})
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *RepositoryTestSuite) TestDeleteUserRemovesTheirNotes() {
	ada := s.createUser("ada")
	grace := s.createUser("grace")
	note := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Engine", Tags: []string{"math"}})
	kept := s.createNote(grace.ID, models.CreateNoteRequest{Title: "Compiler"})

	s.Require().NoError(s.users.Delete(s.ctx, ada.ID))

	_, err := s.notes.GetByID(s.ctx, note.ID, ada.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))

	var tagCount int
	s.Require().NoError(s.db.QueryRow(`SELECT COUNT(*) FROM note_tags WHERE note_id = ?`, note.ID).Scan(&tagCount))
	s.Zero(tagCount)

	_, err = s.notes.GetByID(s.ctx, kept.ID, grace.ID)
	s.NoError(err)

	s.True(apperr.Is(s.users.Delete(s.ctx, ada.ID), apperr.KindNotFound))
}

func (s *RepositoryTestSuite) TestListUsers() {
	s.createUser("ada")
	s.createUser("grace")

	users, err := s.users.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"ada", "grace"}, lo.Map(users, func(u *models.User, _ int) string { return u.Username }))
}

func (s *RepositoryTestSuite) TestCreateAndGetNote() {
	ada := s.createUser("ada")
	note := s.createNote(ada.ID, models.CreateNoteRequest{
		Title:       "Groceries",
		Description: "milk",
		Tags:        []string{"home", "errands", "home"},
		Priority:    models.PriorityHigh,
		IsPinned:    true,
	})

	s.Equal(ada.ID, note.Owner)
	s.Equal("Groceries", note.Title)
	s.Equal("milk", note.Description)
	s.Equal([]string{"errands", "home"}, note.Tags)
	s.Equal(models.PriorityHigh, note.Priority)
	s.True(note.IsPinned)
	s.False(note.CreatedAt.IsZero())

	plain := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Plain"})
	s.NotNil(plain.Tags)
	s.Empty(plain.Tags)
	s.Equal(models.PriorityLow, plain.Priority)
}

func (s *RepositoryTestSuite) TestForeignNotesAreNotFound() {
	ada := s.createUser("ada")
	mallory := s.createUser("mallory")
	note := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Secret"})

	_, err := s.notes.GetByID(s.ctx, note.ID, mallory.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))

	title := "Stolen"
	_, err = s.notes.Update(s.ctx, note.ID, mallory.ID, &models.UpdateNoteRequest{Title: &title})
	s.True(apperr.Is(err, apperr.KindNotFound))

	_, err = s.notes.TogglePin(s.ctx, note.ID, mallory.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))

	s.True(apperr.Is(s.notes.Delete(s.ctx, note.ID, mallory.ID), apperr.KindNotFound))

	unchanged, err := s.notes.GetByID(s.ctx, note.ID, ada.ID)
	s.Require().NoError(err)
	s.Equal("Secret", unchanged.Title)
	s.False(unchanged.IsPinned)
}

func (s *RepositoryTestSuite) TestUpdateMergesFields() {
	ada := s.createUser("ada")
	note := s.createNote(ada.ID, models.CreateNoteRequest{
		Title: "Draft", Description: "keep me", Tags: []string{"a"}, Priority: models.PriorityMedium,
	})

	title := "Final"
	tags := []string{"b", "c"}
	updated, err := s.notes.Update(s.ctx, note.ID, ada.ID, &models.UpdateNoteRequest{Title: &title, Tags: &tags})
	s.Require().NoError(err)

	s.Equal("Final", updated.Title)
	s.Equal("keep me", updated.Description)
	s.Equal(models.PriorityMedium, updated.Priority)
	s.Equal([]string{"b", "c"}, updated.Tags)
	s.False(updated.UpdatedAt.Before(note.UpdatedAt))

	cleared := []string{}
	updated, err = s.notes.Update(s.ctx, note.ID, ada.ID, &models.UpdateNoteRequest{Tags: &cleared})
	s.Require().NoError(err)
	s.Empty(updated.Tags)
}

func (s *RepositoryTestSuite) TestDeleteNote() {
	ada := s.createUser("ada")
	note := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Temp", Tags: []string{"x"}})

	s.Require().NoError(s.notes.Delete(s.ctx, note.ID, ada.ID))

	_, err := s.notes.GetByID(s.ctx, note.ID, ada.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))
	s.True(apperr.Is(s.notes.Delete(s.ctx, note.ID, ada.ID), apperr.KindNotFound))
}

func (s *RepositoryTestSuite) TestTogglePinTwiceRestores() {
	ada := s.createUser("ada")
	note := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Pin me"})

	pinned, err := s.notes.TogglePin(s.ctx, note.ID, ada.ID)
	s.Require().NoError(err)
	s.True(pinned.IsPinned)

	unpinned, err := s.notes.TogglePin(s.ctx, note.ID, ada.ID)
	s.Require().NoError(err)
	s.False(unpinned.IsPinned)
}

func (s *RepositoryTestSuite) TestConcurrentTogglesBothSucceed() {
	ada := s.createUser("ada")
	note := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Pin me"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.notes.TogglePin(s.ctx, note.ID, ada.ID)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	// the last write wins, so either state is valid
	got, err := s.notes.GetByID(s.ctx, note.ID, ada.ID)
	s.Require().NoError(err)
	s.Contains([]bool{true, false}, got.IsPinned)
}

func (s *RepositoryTestSuite) TestListNaturalOrderIsInsertionOrder() {
	ada := s.createUser("ada")
	for _, title := range []string{"first", "second", "third"} {
		s.createNote(ada.ID, models.CreateNoteRequest{Title: title, Priority: models.PriorityHigh})
	}

	notes, total := s.list(ada.ID, url.Values{})
	s.Equal(3, total)
	s.Equal([]string{"first", "second", "third"}, s.titles(notes))
}

func (s *RepositoryTestSuite) TestMultiSortPutsPinnedFirst() {
	ada := s.createUser("ada")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Note A", IsPinned: true, Priority: models.PriorityMedium})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Note B", Priority: models.PriorityHigh})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Note C", Priority: models.PriorityLow})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Note D", IsPinned: true, Priority: models.PriorityHigh})

	notes, _ := s.list(ada.ID, url.Values{"sort": {"multi"}, "order": {"desc"}})
	s.Equal([]string{"Note D", "Note A", "Note B", "Note C"}, s.titles(notes))
}

func (s *RepositoryTestSuite) TestPrioritySort() {
	ada := s.createUser("ada")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "low", Priority: models.PriorityLow})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "high", Priority: models.PriorityHigh})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "medium", Priority: models.PriorityMedium})

	notes, _ := s.list(ada.ID, url.Values{"sort": {"priority"}})
	s.Equal([]string{"high", "medium", "low"}, s.titles(notes))

	notes, _ = s.list(ada.ID, url.Values{"sort": {"priority"}, "order": {"asc"}})
	s.Equal([]string{"low", "medium", "high"}, s.titles(notes))
}

func (s *RepositoryTestSuite) TestTitleAndDateSort() {
	ada := s.createUser("ada")
	for _, title := range []string{"banana", "apple", "cherry"} {
		s.createNote(ada.ID, models.CreateNoteRequest{Title: title})
	}

	notes, _ := s.list(ada.ID, url.Values{"sort": {"title"}, "order": {"asc"}})
	s.Equal([]string{"apple", "banana", "cherry"}, s.titles(notes))

	notes, _ = s.list(ada.ID, url.Values{"sort": {"date"}})
	s.Equal([]string{"cherry", "apple", "banana"}, s.titles(notes))
}

func (s *RepositoryTestSuite) TestTagFilterReturnsIntersectingNotes() {
	ada := s.createUser("ada")
	grace := s.createUser("grace")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "party", Tags: []string{"friends", "fun"}})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "taxes", Tags: []string{"money"}})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "dinner", Tags: []string{"friends"}})
	s.createNote(grace.ID, models.CreateNoteRequest{Title: "not mine", Tags: []string{"friends"}})

	notes, total := s.list(ada.ID, url.Values{"tags": {"friends"}})
	s.Equal(2, total)
	s.Equal([]string{"party", "dinner"}, s.titles(notes))

	notes, _ = s.list(ada.ID, url.Values{"tags": {"money,fun"}})
	s.Equal([]string{"party", "taxes"}, s.titles(notes))
}

func (s *RepositoryTestSuite) TestTextSearchIsCaseInsensitiveAndLiteral() {
	ada := s.createUser("ada")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Shopping List", Description: "eggs"})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Recipes", Description: "Scrambled EGGS"})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Sale", Description: "50% off"})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Numbers", Description: "500 items"})

	notes, _ := s.list(ada.ID, url.Values{"q": {"EGGS"}})
	s.Equal([]string{"Shopping List", "Recipes"}, s.titles(notes))

	notes, _ = s.list(ada.ID, url.Values{"q": {"50%"}})
	s.Equal([]string{"Sale"}, s.titles(notes))

	notes, total := s.list(ada.ID, url.Values{"q": {"nothing here"}})
	s.Zero(total)
	s.NotNil(notes)
	s.Empty(notes)
}

func (s *RepositoryTestSuite) TestTextSearchFoldsUnicode() {
	ada := s.createUser("ada")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Über Alles", Description: "ÉCOLE notes"})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "Plain", Description: "ascii only"})

	for _, q := range []string{"über", "ÜBER", "Über", "école", "ÉCOLE"} {
		notes, total := s.list(ada.ID, url.Values{"q": {q}})
		s.Equal(1, total, q)
		s.Equal([]string{"Über Alles"}, s.titles(notes), q)
	}
}

func (s *RepositoryTestSuite) TestTagsDifferingOnlyInCaseOrAccentAreKept() {
	ada := s.createUser("ada")
	note := s.createNote(ada.ID, models.CreateNoteRequest{Title: "Mixed", Tags: []string{"Work", "work", "cafe", "café"}})
	s.ElementsMatch([]string{"Work", "work", "cafe", "café"}, note.Tags)

	got, err := s.notes.GetByID(s.ctx, note.ID, ada.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"Work", "work", "cafe", "café"}, got.Tags)

	notes, _ := s.list(ada.ID, url.Values{"tags": {"work"}})
	s.Equal([]string{"Mixed"}, s.titles(notes))
	notes, _ = s.list(ada.ID, url.Values{"tags": {"WORK"}})
	s.Empty(notes)
}

func (s *RepositoryTestSuite) TestPriorityAndPinnedFilters() {
	ada := s.createUser("ada")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "one", Priority: models.PriorityHigh, IsPinned: true})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "two", Priority: models.PriorityHigh})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "three", Priority: models.PriorityLow, IsPinned: true})

	notes, _ := s.list(ada.ID, url.Values{"priority": {"high"}})
	s.Equal([]string{"one", "two"}, s.titles(notes))

	notes, _ = s.list(ada.ID, url.Values{"isPinned": {"true"}})
	s.Equal([]string{"one", "three"}, s.titles(notes))

	notes, _ = s.list(ada.ID, url.Values{"priority": {"high"}, "isPinned": {"false"}})
	s.Equal([]string{"two"}, s.titles(notes))
}

func (s *RepositoryTestSuite) TestPagination() {
	ada := s.createUser("ada")
	for i := 1; i <= 7; i++ {
		s.createNote(ada.ID, models.CreateNoteRequest{Title: fmt.Sprintf("note %d", i)})
	}

	q, err := query.ParseSearch(url.Values{"page": {"2"}, "limit": {"3"}})
	s.Require().NoError(err)
	notes, total, err := s.notes.List(s.ctx, ada.ID, q)
	s.Require().NoError(err)

	s.Equal([]string{"note 4", "note 5", "note 6"}, s.titles(notes))
	meta := query.NewPageMeta(q.Page, total)
	s.Equal(query.PageMeta{Page: 2, Limit: 3, TotalPages: 3, TotalNotes: 7}, meta)
}

func (s *RepositoryTestSuite) TestPageBeyondRangeIsEmpty() {
	ada := s.createUser("ada")
	for i := 1; i <= 3; i++ {
		s.createNote(ada.ID, models.CreateNoteRequest{Title: fmt.Sprintf("note %d", i)})
	}

	for _, page := range []string{"5", strconv.Itoa(math.MaxInt)} {
		notes, total := s.list(ada.ID, url.Values{"page": {page}, "limit": {"2"}})
		s.Equal(3, total, page)
		s.Empty(notes, page)
	}
}

func (s *RepositoryTestSuite) TestListTags() {
	ada := s.createUser("ada")
	grace := s.createUser("grace")
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "one", Tags: []string{"work", "home"}})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "two", Tags: []string{"home"}})
	s.createNote(grace.ID, models.CreateNoteRequest{Title: "three", Tags: []string{"garden"}})

	tags, err := s.notes.ListTags(s.ctx, ada.ID)
	s.Require().NoError(err)
	s.Equal([]string{"home", "work"}, tags)

	none, err := s.notes.ListTags(s.ctx, 999)
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *RepositoryTestSuite) TestListByOwners() {
	ada := s.createUser("ada")
	grace := s.createUser("grace")
	other := s.createUser("other")
	s.createNote(grace.ID, models.CreateNoteRequest{Title: "g1", Tags: []string{"x"}})
	s.createNote(ada.ID, models.CreateNoteRequest{Title: "a1"})
	s.createNote(other.ID, models.CreateNoteRequest{Title: "o1"})

	notes, err := s.notes.ListByOwners(s.ctx, []int64{ada.ID, grace.ID})
	s.Require().NoError(err)
	s.Equal([]string{"a1", "g1"}, s.titles(notes))
	s.Equal([]string{"x"}, notes[1].Tags)

	empty, err := s.notes.ListByOwners(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(empty)
}
