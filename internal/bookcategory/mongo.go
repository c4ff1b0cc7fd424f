package bookcategory

import (
	"context"
	"fmt"
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
	return &MongoStore{coll: db.Collection(database.CollBookCategories)}
}

func (s *MongoStore) List(ctx context.Context, isActive *bool) ([]models.BookCategory, error) {
	filter := bson.M{}
	if isActive != nil {
		filter["isActive"] = *isActive
	}
	opts := options.Find().SetSort(bson.D{{Key: "displayOrder", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	res := []models.BookCategory{}
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.BookCategory, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.one(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetByName(ctx context.Context, name string) (*models.BookCategory, error) {
	return s.one(ctx, bson.M{"name": name})
}

func (s *MongoStore) one(ctx context.Context, filter bson.M) (*models.BookCategory, error) {
	var bc models.BookCategory
	if err := s.coll.FindOne(ctx, filter).Decode(&bc); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &bc, nil
}

func (s *MongoStore) Create(ctx context.Context, bc *models.BookCategory) error {
	now := time.Now().UTC()
	if bc.ID.IsZero() {
		bc.ID = primitive.NewObjectID()
	}
	bc.CreatedAt, bc.UpdatedAt = now, now
	if _, err := s.coll.InsertOne(ctx, bc); err != nil {
		return fmt.Errorf("insert book category: %w", database.MapMongoError(err))
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p Patch) (*models.BookCategory, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.NameEn != nil {
		set["nameEn"] = *p.NameEn
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Icon != nil {
		set["icon"] = *p.Icon
	}
	if p.Color != nil {
		set["color"] = *p.Color
	}
	if p.DisplayOrder != nil {
		set["displayOrder"] = *p.DisplayOrder
	}
	if p.IsActive != nil {
		set["isActive"] = *p.IsActive
	}
	var bc models.BookCategory
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&bc)
	if err != nil {
		return nil, database.MapMongoError(err)
	}
	return &bc, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := database.ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete book category: %w", err)
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Reorder(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(ids))
	for i, id := range ids {
		oid, err := database.ParseID(id)
		if err != nil {
			continue
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": oid}).
			SetUpdate(bson.M{"$set": bson.M{"displayOrder": i, "updatedAt": now}}))
	}
	if len(writes) == 0 {
		return nil
	}
	if _, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("reorder book categories: %w", err)
	}
	return nil
}
