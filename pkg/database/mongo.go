package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollReadings       = "readings"
	CollTopics         = "topics"
	CollUsers          = "users"
	CollBooks          = "books"
	CollAudios         = "audios"
	CollBookCategories = "bookcategories"
)

// ConnectMongo dials the server and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the secondary indexes each collection relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		CollReadings: {
			{Keys: bson.D{{Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "topicSlugs", Value: 1}}},
			{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "body", Value: "text"}}},
		},
		CollTopics: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}}},
		},
		CollUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
			{Keys: bson.D{{Key: "isActive", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		CollBooks: {
			{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "author", Value: "text"}, {Key: "description", Value: "text"}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
			{Keys: bson.D{{Key: "downloadCount", Value: -1}, {Key: "viewCount", Value: -1}}},
		},
		CollAudios: {
			{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}, {Key: "artist", Value: "text"}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "playCount", Value: -1}}},
		},
		CollBookCategories: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "displayOrder", Value: 1}, {Key: "name", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// MapMongoError converts driver errors into the package sentinels.
func MapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// SortDoc turns a whitelisted field and direction into a sort document,
// with _id as a stable tiebreaker.
func SortDoc(field string, asc bool) bson.D {
	dir := -1
	if asc {
		dir = 1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}
