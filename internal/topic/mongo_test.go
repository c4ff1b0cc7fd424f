package topic

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestSearchFilter(t *testing.T) {
	if got := searchFilter("  "); len(got) != 0 {
		t.Errorf("expected empty filter, got %v", got)
	}
	want := bson.M{"$text": bson.M{"$search": "từ bi"}}
	if got := searchFilter(" từ bi "); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
