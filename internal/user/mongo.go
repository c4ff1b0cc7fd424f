package user

import (
	"context"
	"fmt"
	"regexp"
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
	return &MongoStore{coll: db.Collection(database.CollUsers)}
}

func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	if s := strings.TrimSpace(f.Search); s != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		q["$or"] = bson.A{bson.M{"name": re}, bson.M{"email": re}}
	}
	if f.Role != "" {
		q["role"] = f.Role
	}
	if f.IsActive != nil {
		q["isActive"] = *f.IsActive
	}
	return q
}

func (s *MongoStore) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("insert user: %w", database.MapMongoError(err))
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.User, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.one(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.one(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *MongoStore) one(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &u, nil
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, mongoFilter(f))
}

func (s *MongoStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.User, error) {
	field, ok := SortFields[f.SortBy]
	if !ok {
		field = "createdAt"
	}
	opts := options.Find().
		SetSort(database.SortDoc(field, f.Asc)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	res := []models.User{}
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p Patch) (*models.User, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = NormalizeEmail(*p.Email)
	}
	if p.PasswordHash != nil {
		set["passwordHash"] = *p.PasswordHash
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.IsActive != nil {
		set["isActive"] = *p.IsActive
	}
	if p.Avatar != nil {
		set["avatar"] = *p.Avatar
	}
	if p.DateOfBirth != nil {
		set["dateOfBirth"] = *p.DateOfBirth
	}
	if p.LastLoginAt != nil {
		set["lastLoginAt"] = *p.LastLoginAt
	}
	if p.Preferences != nil {
		set["preferences"] = p.Preferences
	}
	if p.Stats != nil {
		set["stats"] = p.Stats
	}
	var u models.User
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", database.MapMongoError(err))
	}
	return &u, nil
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
