package book

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
	return &MongoStore{coll: db.Collection(database.CollBooks)}
}

func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Language != "" {
		q["bookLanguage"] = f.Language
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

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Book, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	res := []models.Book{}
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, mongoFilter(f))
}

func (s *MongoStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.Book, error) {
	field, ok := SortFields[f.SortBy]
	if !ok {
		field = "createdAt"
	}
	return s.find(ctx, mongoFilter(f), options.Find().
		SetSort(database.SortDoc(field, f.Asc)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)))
}

func (s *MongoStore) Popular(ctx context.Context, limit int) ([]models.Book, error) {
	return s.find(ctx, bson.M{"isPublic": true}, options.Find().
		SetSort(bson.D{{Key: "downloadCount", Value: -1}, {Key: "viewCount", Value: -1}}).
		SetLimit(int64(limit)))
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Book, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	var b models.Book
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&b); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &b, nil
}

func (s *MongoStore) Create(ctx context.Context, b *models.Book) error {
	now := time.Now().UTC()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if _, err := s.coll.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("insert book: %w", database.MapMongoError(err))
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p Patch) (*models.Book, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Author != nil {
		set["author"] = *p.Author
	}
	if p.Translator != nil {
		set["translator"] = *p.Translator
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Tags != nil {
		set["tags"] = *p.Tags
	}
	if p.BookLanguage != nil {
		set["bookLanguage"] = *p.BookLanguage
	}
	if p.Publisher != nil {
		set["publisher"] = *p.Publisher
	}
	if p.PublishYear != nil {
		set["publishYear"] = *p.PublishYear
	}
	if p.ISBN != nil {
		set["isbn"] = *p.ISBN
	}
	if p.PageCount != nil {
		set["pageCount"] = *p.PageCount
	}
	if p.IsPublic != nil {
		set["isPublic"] = *p.IsPublic
	}
	var b models.Book
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&b)
	if err != nil {
		return nil, database.MapMongoError(err)
	}
	return &b, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := database.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetCounter(ctx context.Context, id string, c Counter, value int64) error {
	if c != Downloads && c != Views {
		return fmt.Errorf("unknown counter %q", c)
	}
	oid, err := database.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{string(c): value, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update %s: %w", c, err)
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *MongoStore) CountByCategory(ctx context.Context, category string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"category": category})
}
