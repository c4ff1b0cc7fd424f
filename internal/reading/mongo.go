package reading

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
	return &MongoStore{coll: db.Collection(database.CollReadings)}
}

var summaryProjection = bson.D{{Key: "_id", Value: 1}, {Key: "date", Value: 1}, {Key: "title", Value: 1}, {Key: "topicSlugs", Value: 1}}

func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	if f.Topic != "" {
		q["topicSlugs"] = f.Topic
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q["$text"] = bson.M{"$search": s}
	}
	return q
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	res := []T{}
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MongoStore) ByDate(ctx context.Context, day time.Time) ([]models.Reading, error) {
	cur, err := s.coll.Find(ctx, bson.M{"date": day}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Reading](ctx, cur)
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, mongoFilter(f))
}

func (s *MongoStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.Reading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Reading](ctx, cur)
}

func (s *MongoStore) Month(ctx context.Context, from, to time.Time) ([]models.ReadingSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}}).
		SetProjection(summaryProjection)
	cur, err := s.coll.Find(ctx, bson.M{"date": bson.M{"$gte": from, "$lt": to}}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.ReadingSummary](ctx, cur)
}

func (s *MongoStore) Random(ctx context.Context) (*models.Reading, error) {
	cur, err := s.coll.Aggregate(ctx, mongo.Pipeline{{{Key: "$sample", Value: bson.M{"size": 1}}}})
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll[models.Reading](ctx, cur)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, database.ErrNotFound
	}
	return &docs[0], nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Reading, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	var r models.Reading
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&r); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &r, nil
}

func (s *MongoStore) Create(ctx context.Context, r *models.Reading) error {
	now := time.Now().UTC()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.CreatedAt, r.UpdatedAt = now, now
	if r.TopicSlugs == nil {
		r.TopicSlugs = []string{}
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert reading: %w", database.MapMongoError(err))
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, p Patch) (*models.Reading, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Body != nil {
		set["body"] = *p.Body
	}
	if p.TopicSlugs != nil {
		set["topicSlugs"] = *p.TopicSlugs
	}
	if p.Keywords != nil {
		set["keywords"] = *p.Keywords
	}
	if p.Source != nil {
		set["source"] = *p.Source
	}
	if p.Lang != nil {
		set["lang"] = *p.Lang
	}
	var r models.Reading
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&r)
	if err != nil {
		return nil, database.MapMongoError(err)
	}
	return &r, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (*models.Reading, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, err
	}
	var r models.Reading
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&r); err != nil {
		return nil, database.MapMongoError(err)
	}
	return &r, nil
}

func (s *MongoStore) CountByTopic(ctx context.Context, slug string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"topicSlugs": slug})
}

func (s *MongoStore) TopicCounts(ctx context.Context) ([]TopicCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$topicSlugs"}},
		{{Key: "$group", Value: bson.M{"_id": "$topicSlugs", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeAll[TopicCount](ctx, cur)
}

func (s *MongoStore) Recent(ctx context.Context, n int) ([]models.ReadingSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetLimit(int64(n)).
		SetProjection(summaryProjection)
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.ReadingSummary](ctx, cur)
}

func (s *MongoStore) DatesSince(ctx context.Context, from time.Time) ([]time.Time, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "date", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"date": bson.M{"$gte": from}}, opts)
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll[struct {
		Date time.Time `bson:"date"`
	}](ctx, cur)
	if err != nil {
		return nil, err
	}
	res := make([]time.Time, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.Date)
	}
	return res, nil
}
