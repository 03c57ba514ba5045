package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m2tx/tutor_agent/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// session is the stored form of a chat session. Entries are kept in
// arrival order and trimmed from the front by $slice.
type session struct {
	ID        string               `bson:"_id"`
	History   []model.HistoryEntry `bson:"history"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

// MongoSessionRepository stores one document per chat session.
type MongoSessionRepository struct {
	sessions   *mongo.Collection
	maxEntries int
}

// NewMongoSessionRepository uses collectionName ("sessions" when empty) and
// keeps at most maxEntries per session (DefaultMaxHistoryEntries when zero).
func NewMongoSessionRepository(db *mongo.Database, collectionName string, maxEntries int) *MongoSessionRepository {
	if collectionName == "" {
		collectionName = "sessions"
	}
	return &MongoSessionRepository{
		sessions:   db.Collection(collectionName),
		maxEntries: capOrDefault(maxEntries),
	}
}

func (r *MongoSessionRepository) Save(ctx context.Context, sessionID string, history []model.HistoryEntry) error {
	doc := session{
		ID:        sessionID,
		History:   newest(history, r.maxEntries),
		UpdatedAt: time.Now().UTC(),
	}
	if doc.History == nil {
		doc.History = []model.HistoryEntry{}
	}

	_, err := r.sessions.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("repository: save session %q: %w", sessionID, err)
	}
	return nil
}

// Append pushes entries server side, so concurrent requests on one session
// never overwrite each other's exchanges.
func (r *MongoSessionRepository) Append(ctx context.Context, sessionID string, entries ...model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := r.sessions.UpdateByID(ctx, sessionID, appendUpdate(entries, r.maxEntries, time.Now().UTC()), options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("repository: append to session %q: %w", sessionID, err)
	}
	return nil
}

// appendUpdate pushes entries and trims the array to its newest maxEntries.
func appendUpdate(entries []model.HistoryEntry, maxEntries int, now time.Time) bson.M {
	return bson.M{
		"$push": bson.M{"history": bson.M{
			"$each":  entries,
			"$slice": -maxEntries,
		}},
		"$set": bson.M{"updated_at": now},
	}
}

func (r *MongoSessionRepository) Load(ctx context.Context, sessionID string) ([]model.HistoryEntry, error) {
	var doc session
	opts := options.FindOne().SetProjection(bson.M{"history": 1})
	switch err := r.sessions.FindOne(ctx, bson.M{"_id": sessionID}, opts).Decode(&doc); {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("repository: load session %q: %w", sessionID, err)
	}
	return doc.History, nil
}

func (r *MongoSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.sessions.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("repository: delete session %q: %w", sessionID, err)
	}
	return nil
}

type collectionDocument struct {
	UserID       string `bson:"_id"`
	CollectionID string `bson:"collection_id"`
}

// MongoCollectionResolver looks up the document collection assigned to a
// user. Users without an assignment search a collection named after them.
type MongoCollectionResolver struct {
	collection *mongo.Collection
}

// NewMongoCollectionResolver creates a resolver over collectionName, which
// defaults to "collections" if empty.
func NewMongoCollectionResolver(db *mongo.Database, collectionName string) *MongoCollectionResolver {
	if collectionName == "" {
		collectionName = "collections"
	}
	return &MongoCollectionResolver{collection: db.Collection(collectionName)}
}

func (r *MongoCollectionResolver) ResolveCollection(ctx context.Context, userID string) (string, error) {
	var doc collectionDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return userID, nil
	}
	if err != nil {
		return "", fmt.Errorf("repository: find collection for %q: %w", userID, err)
	}
	if doc.CollectionID == "" {
		return userID, nil
	}
	return doc.CollectionID, nil
}

// AssignCollection maps a user to a collection id.
func (r *MongoCollectionResolver) AssignCollection(ctx context.Context, userID, collectionID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"collection_id": collectionID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("repository: assign collection for %q: %w", userID, err)
	}
	return nil
}
