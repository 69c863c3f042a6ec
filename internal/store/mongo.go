package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with earlier deployments of the service.
const (
	CollectionURLs     = "urls"
	CollectionAnalysis = "analysis"
	CollectionChats    = "chats"
	CollectionMessages = "messages"
)

// MongoStore keeps each logical collection in its own MongoDB collection.
// There are no multi-collection transactions: every write is durable on its
// own.
type MongoStore struct {
	client   *mongo.Client
	urls     *mongo.Collection
	analysis *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
	clock    *clock
}

var _ DocumentStore = (*MongoStore)(nil)

// NewMongoStore connects, pings and makes sure the query indexes exist.
func NewMongoStore(ctx context.Context, uri, database string, opts ...Option) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	o := applyOptions(opts)
	s := &MongoStore{
		client:   client,
		urls:     db.Collection(CollectionURLs),
		analysis: db.Collection(CollectionAnalysis),
		chats:    db.Collection(CollectionChats),
		messages: db.Collection(CollectionMessages),
		clock:    newClock(o.now),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}
	if _, err := s.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastUpdated", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create chats index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) CreateChat(ctx context.Context, userID, title string) (*Chat, error) {
	if title == "" {
		title = DefaultChatTitle
	}
	now := s.clock.Next()
	chat := &Chat{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: now, LastUpdated: now}
	if _, err := s.chats.InsertOne(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}
	return chat, nil
}

func (s *MongoStore) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUpdated", Value: -1}, {Key: "created", Value: -1}})
	cursor, err := s.chats.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := []Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}

func (s *MongoStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	err := s.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *MongoStore) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	return s.updateChat(ctx, chatID, bson.M{"title": title, "lastUpdated": s.clock.Next()})
}

func (s *MongoStore) TouchChat(ctx context.Context, chatID string) error {
	return s.updateChat(ctx, chatID, bson.M{"lastUpdated": s.clock.Next()})
}

func (s *MongoStore) updateChat(ctx context.Context, chatID string, set bson.M) error {
	res, err := s.chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChat removes messages before the chat so that an interrupted delete
// leaves an empty chat rather than orphaned messages.
func (s *MongoStore) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return err
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"chatId": chatID}); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	res, err := s.chats.DeleteOne(ctx, bson.M{"_id": chatID})
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = s.clock.Next()
	msg.ensureSources()
	if _, err := s.messages.InsertOne(ctx, messageDocument(msg)); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// messageDocument spells out the stored fields so an assistant message
// keeps an empty sources array, which the struct's omitempty would drop.
func messageDocument(msg *Message) bson.D {
	doc := bson.D{
		{Key: "_id", Value: msg.ID},
		{Key: "chatId", Value: msg.ChatID},
		{Key: "userId", Value: msg.UserID},
		{Key: "content", Value: msg.Content},
	}
	if msg.Sources != nil {
		doc = append(doc, bson.E{Key: "sources", Value: msg.Sources})
	}
	return append(doc,
		bson.E{Key: "timestamp", Value: msg.Timestamp},
		bson.E{Key: "type", Value: msg.Type},
	)
}

func (s *MongoStore) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	// Timestamps from one process never tie; _id only makes cross-process
	// ties deterministic.
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	for i := range messages {
		messages[i].normalize()
	}
	return messages, nil
}

func (s *MongoStore) InsertAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error {
	rec.ID = uuid.NewString()
	rec.Timestamp = s.clock.Next()
	if _, err := s.analysis.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert analysis record: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertURLLog(ctx context.Context, entry *URLLog) error {
	if entry.URLs == nil {
		entry.URLs = []string{}
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = s.clock.Next()
	if _, err := s.urls.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert url log: %w", err)
	}
	return nil
}
