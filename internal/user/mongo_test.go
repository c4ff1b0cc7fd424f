package user

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoFilter(t *testing.T) {
	if got := mongoFilter(Filter{}); len(got) != 0 {
		t.Errorf("expected empty filter, got %v", got)
	}

	active := false
	got := mongoFilter(Filter{Search: " a.b+c ", Role: "ADMIN", IsActive: &active})
	re := primitive.Regex{Pattern: `a\.b\+c`, Options: "i"}
	want := bson.M{
		"$or":      bson.A{bson.M{"name": re}, bson.M{"email": re}},
		"role":     "ADMIN",
		"isActive": false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
