package topic

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

var displayOrder = bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(database.CollTopics)}
}

func searchFilter(search string) bson.M {
	if q := strings.TrimSpace(search); q != "" {
		return bson.M{"$text": bson.M{"$search": q}}
	}
	return bson.M{}
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Topic, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	res := []models.Topic{}
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MongoStore) Count(ctx context.Context, search string) (int64, error) {
	return s.coll.CountDocuments(ctx, searchFilter(search))
}

func (s *MongoStore) Find(ctx context.Context, search string, skip, limit int) ([]models.Topic, error) {
	opts := options.Find().SetSort(displayOrder).SetSkip(int64(skip)).SetLimit(int64(limit))
	return s.find(ctx, searchFilter(search), opts)
}

func (s *MongoStore) Active(ctx context.Context) ([]models.Topic, error) {
	return s.find(ctx, bson.M{"isActive": true}, options.Find().SetSort(displayOrder))
}

func (s *MongoStore) CountByActive(ctx context.Context, active bool) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"isActive": active})
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Topic, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetBySlug(ctx context.Context, slug string) (*models.Topic, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Topic, error) {
	var t models.Topic
	if err := s.coll.FindOne(ctx, filter).Decode(&t); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &t, nil
}

func (s *MongoStore) Create(ctx context.Context, t *models.Topic) error {
	now := time.Now().UTC()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	if _, err := s.coll.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert topic: %w", database.MapMongoError(err))
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p Patch) (*models.Topic, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Color != nil {
		set["color"] = *p.Color
	}
	if p.Icon != nil {
		set["icon"] = *p.Icon
	}
	if p.IsActive != nil {
		set["isActive"] = *p.IsActive
	}
	if p.SortOrder != nil {
		set["sortOrder"] = *p.SortOrder
	}
	var t models.Topic
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if err != nil {
		return nil, database.MapMongoError(err)
	}
	return &t, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := database.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
