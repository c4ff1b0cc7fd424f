package reading

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestMongoFilter(t *testing.T) {
	cases := []struct {
		f    Filter
		want bson.M
	}{
		{Filter{}, bson.M{}},
		{Filter{Search: "   "}, bson.M{}},
		{Filter{Topic: "tu-bi"}, bson.M{"topicSlugs": "tu-bi"}},
		{Filter{Topic: "thien", Search: " hơi thở "}, bson.M{
			"topicSlugs": "thien",
			"$text":      bson.M{"$search": "hơi thở"},
		}},
	}
	for _, tc := range cases {
		if got := mongoFilter(tc.f); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%+v: got %v, want %v", tc.f, got, tc.want)
		}
	}
}
