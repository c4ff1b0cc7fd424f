package audio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"thientam/pkg/database"
	"thientam/pkg/models"
)

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(database.CollAudios)}
}

func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.IsPublic != nil {
		q["isPublic"] = *f.IsPublic
	}
	if len(f.Tags) > 0 {
		q["tags"] = bson.M{"$in": f.Tags}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q["$text"] = bson.M{"$search": s}
	}
	return q
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Audio, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	res := []models.Audio{}
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, mongoFilter(f))
}

func (s *MongoStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.Audio, error) {
	field, ok := SortFields[f.SortBy]
	if !ok {
		field = "createdAt"
	}
	return s.find(ctx, mongoFilter(f), options.Find().
		SetSort(database.SortDoc(field, f.Asc)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)))
}

func (s *MongoStore) Popular(ctx context.Context, limit int) ([]models.Audio, error) {
	return s.find(ctx, bson.M{"isPublic": true}, options.Find().
		SetSort(bson.D{{Key: "playCount", Value: -1}}).
		SetLimit(int64(limit)))
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Audio, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	var a models.Audio
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &a, nil
}

func (s *MongoStore) Create(ctx context.Context, a *models.Audio) error {
	now := time.Now().UTC()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert audio: %w", database.MapMongoError(err))
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p Patch) (*models.Audio, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Artist != nil {
		set["artist"] = *p.Artist
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Tags != nil {
		set["tags"] = *p.Tags
	}
	if p.IsPublic != nil {
		set["isPublic"] = *p.IsPublic
	}
	var a models.Audio
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&a)
	if err != nil {
		return nil, database.MapMongoError(err)
	}
	return &a, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := database.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete audio: %w", err)
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetPlayCount(ctx context.Context, id string, value int64) error {
	oid, err := database.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"playCount": value, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update play count: %w", err)
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
