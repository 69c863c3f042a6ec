package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db    *sql.DB
	clock *clock
}

var _ DocumentStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	o := applyOptions(opts)
	store := &SQLiteStore{db: db, clock: newClock(o.now)}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        title TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        last_updated DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_chats_user_updated ON chats (user_id, last_updated);

    -- chat_id is not a foreign key: messages may reference chats this
    -- store never saw, and deletes cascade in DeleteChat.
    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        chat_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        type TEXT NOT NULL CHECK (type IN ('user', 'assistant')),
        content TEXT NOT NULL, -- JSON string or section object
        sources TEXT,          -- JSON array of URLs
        timestamp DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages (chat_id, timestamp);

    CREATE TABLE IF NOT EXISTS analysis_records (
        id TEXT PRIMARY KEY,
        statement TEXT NOT NULL,
        analysis TEXT NOT NULL,
        user_id TEXT,
        timestamp DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS url_logs (
        id TEXT PRIMARY KEY,
        query TEXT NOT NULL,
        urls TEXT NOT NULL,
        timestamp DATETIME NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Chat methods
func (s *SQLiteStore) CreateChat(ctx context.Context, userID, title string) (*Chat, error) {
	if title == "" {
		title = DefaultChatTitle
	}
	now := s.clock.Next()
	chat := &Chat{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: now, LastUpdated: now}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (id, user_id, title, created_at, last_updated) VALUES (?, ?, ?, ?, ?)",
		chat.ID, chat.UserID, chat.Title, chat.CreatedAt, chat.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to execute chat insert: %w", err)
	}
	return chat, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, last_updated FROM chats WHERE id = ?", chatID).
		Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt, &chat.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, last_updated FROM chats WHERE user_id = ? ORDER BY last_updated DESC, created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt, &chat.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE chats SET title = ?, last_updated = ? WHERE id = ?", title, s.clock.Next(), chatID)
	if err != nil {
		return fmt.Errorf("failed to execute chat title update: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) TouchChat(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE chats SET last_updated = ? WHERE id = ?", s.clock.Next(), chatID)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	return tx.Commit()
}

// Message methods
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}
	msg.ensureSources()
	var sources []byte
	if msg.Sources != nil {
		if sources, err = json.Marshal(msg.Sources); err != nil {
			return fmt.Errorf("failed to encode message sources: %w", err)
		}
	}

	msg.ID = uuid.NewString()
	msg.Timestamp = s.clock.Next()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, user_id, type, content, sources, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, msg.UserID, string(msg.Type), string(content), nullableText(sources), msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, user_id, type, content, sources, timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp ASC, rowid ASC",
		chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			msg     Message
			msgType string
			content string
			sources sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.UserID, &msgType, &content, &sources, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Type = MessageType(msgType)
		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to decode content of message %s: %w", msg.ID, err)
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources of message %s: %w", msg.ID, err)
			}
		}
		msg.normalize()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Audit records
func (s *SQLiteStore) InsertAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error {
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	rec.ID = uuid.NewString()
	rec.Timestamp = s.clock.Next()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO analysis_records (id, statement, analysis, user_id, timestamp) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Statement, string(analysis), nullableText([]byte(rec.UserID)), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute analysis record insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertURLLog(ctx context.Context, entry *URLLog) error {
	urls := entry.URLs
	if urls == nil {
		urls = []string{}
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode urls: %w", err)
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = s.clock.Next()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO url_logs (id, query, urls, timestamp) VALUES (?, ?, ?, ?)",
		entry.ID, entry.Query, string(encoded), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute url log insert: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
