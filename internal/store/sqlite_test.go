package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow returns a time source that never advances, so ordering relies
// entirely on the store's clock.
func fixedNow() func() time.Time {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestSQLiteStore_CreateChatDefaultsTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, DefaultChatTitle, chat.Title)
	assert.Equal(t, chat.CreatedAt, chat.LastUpdated)

	got, err := s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, chat.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_ListChatsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithNow(fixedNow()))

	first, err := s.CreateChat(ctx, "u1", "first")
	require.NoError(t, err)
	_, err = s.CreateChat(ctx, "other-user", "not mine")
	require.NoError(t, err)
	second, err := s.CreateChat(ctx, "u1", "second")
	require.NoError(t, err)

	chats, err := s.ListChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)
	assert.Equal(t, first.ID, chats[1].ID)

	// touching the older chat moves it to the front
	require.NoError(t, s.TouchChat(ctx, first.ID))
	chats, err = s.ListChats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, chats[0].ID)
}

func TestSQLiteStore_ListChatsEmpty(t *testing.T) {
	s := newTestStore(t)
	chats, err := s.ListChats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, chats)
	assert.Empty(t, chats)
}

func TestSQLiteStore_UpdateChatTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithNow(fixedNow()))

	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	require.NoError(t, s.UpdateChatTitle(ctx, chat.ID, "Renamed"))

	got, err := s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.LastUpdated.After(chat.LastUpdated))

	assert.ErrorIs(t, s.UpdateChatTitle(ctx, "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.TouchChat(ctx, "missing"), ErrNotFound)
	_, err = s.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_MessagesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithNow(fixedNow()))
	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)

	user := &Message{ChatID: chat.ID, UserID: "u1", Type: MessageTypeUser, Content: TextContent("The Earth is flat.")}
	require.NoError(t, s.AppendMessage(ctx, user))
	structured := &Message{
		ChatID: chat.ID, UserID: "u1", Type: MessageTypeAssistant,
		Content: AnalysisContent(Analysis{Sections: map[SectionName]string{SectionMainThesis: "flat"}}),
		Sources: []string{"https://a.example", "https://b.example"},
	}
	require.NoError(t, s.AppendMessage(ctx, structured))
	freeform := &Message{
		ChatID: chat.ID, UserID: "u1", Type: MessageTypeAssistant,
		Content: AnalysisContent(Analysis{RawText: "This claim is inaccurate."}),
	}
	require.NoError(t, s.AppendMessage(ctx, freeform))

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, MessageTypeUser, msgs[0].Type)
	assert.Equal(t, "The Earth is flat.", msgs[0].Content.Text)
	assert.Nil(t, msgs[0].Content.Analysis)

	require.NotNil(t, msgs[1].Content.Analysis)
	assert.Equal(t, "flat", msgs[1].Content.Analysis.Sections[SectionMainThesis])
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, msgs[1].Sources)

	require.NotNil(t, msgs[2].Content.Analysis)
	assert.Equal(t, "This claim is inaccurate.", msgs[2].Content.Analysis.RawText)
	assert.NotNil(t, msgs[2].Sources)
	assert.Empty(t, msgs[2].Sources)
	assert.Nil(t, msgs[0].Sources)

	var stored sql.NullString
	require.NoError(t, s.db.QueryRow("SELECT sources FROM messages WHERE id = ?", freeform.ID).Scan(&stored))
	assert.Equal(t, "[]", stored.String)
	require.NoError(t, s.db.QueryRow("SELECT sources FROM messages WHERE id = ?", user.ID).Scan(&stored))
	assert.False(t, stored.Valid)

	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp), "message %d not after %d", i, i-1)
	}
}

func TestSQLiteStore_ListMessagesTieKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)

	// Rows written by another process can share a timestamp with ours.
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"zz-first", "aa-second", "mm-third"} {
		_, err := s.db.Exec(
			"INSERT INTO messages (id, chat_id, user_id, type, content, sources, timestamp) VALUES (?, ?, 'u1', 'user', '\"x\"', NULL, ?)",
			id, chat.ID, ts)
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "zz-first", msgs[0].ID)
	assert.Equal(t, "aa-second", msgs[1].ID)
	assert.Equal(t, "mm-third", msgs[2].ID)
}

func TestSQLiteStore_DeleteChatCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	other, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)
	for _, id := range []string{chat.ID, chat.ID, other.ID} {
		require.NoError(t, s.AppendMessage(ctx, &Message{ChatID: id, UserID: "u1", Type: MessageTypeUser, Content: TextContent("hi")}))
	}

	require.NoError(t, s.DeleteChat(ctx, chat.ID))

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = s.GetChat(ctx, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	remaining, err := s.ListMessages(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	assert.ErrorIs(t, s.DeleteChat(ctx, chat.ID), ErrNotFound)
}

func TestSQLiteStore_AuditRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &AnalysisRecord{Statement: "s", Analysis: Analysis{RawText: "accurate"}}
	require.NoError(t, s.InsertAnalysisRecord(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())

	entry := &URLLog{Query: "q"}
	require.NoError(t, s.InsertURLLog(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	var urls string
	require.NoError(t, s.db.QueryRow("SELECT urls FROM url_logs WHERE id = ?", entry.ID).Scan(&urls))
	assert.Equal(t, "[]", urls)
}

func TestSQLiteStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	chat, err := s.CreateChat(ctx, "u1", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendMessage(ctx, &Message{ChatID: chat.ID, UserID: "u1", Type: MessageTypeUser, Content: TextContent("x")}))
		}()
	}
	wg.Wait()

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	c := newClock(fixedNow())
	a, b := c.Next(), c.Next()
	assert.Equal(t, time.Millisecond, b.Sub(a))
}
