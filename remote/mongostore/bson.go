package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/amonks/taskmirror/remote"
)

// Filter renders predicates as a MongoDB query document.
func Filter(predicates []remote.Predicate) bson.D {
	filter := bson.D{}
	for _, p := range predicates {
		value := remote.NormalizeValue(p.Value)
		var cond any
		switch p.Op {
		case remote.OpEq:
			cond = bson.M{"$eq": value}
		case remote.OpNe:
			cond = bson.M{"$ne": value}
		case remote.OpLt:
			cond = bson.M{"$lt": value}
		case remote.OpLe:
			cond = bson.M{"$lte": value}
		case remote.OpGt:
			cond = bson.M{"$gt": value}
		case remote.OpGe:
			cond = bson.M{"$gte": value}
		case remote.OpIn:
			items, _ := value.([]any)
			if items == nil {
				items = []any{}
			}
			cond = bson.M{"$in": bson.A(items)}
		case remote.OpContains:
			cond = bson.M{"$elemMatch": bson.M{"$eq": value}}
		default:
			continue
		}
		filter = append(filter, bson.E{Key: p.Field, Value: cond})
	}
	return filter
}

func toRecord(doc bson.M) remote.Record {
	id := fmt.Sprint(doc["_id"])
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		id = oid.Hex()
	}
	data := make(map[string]any, len(doc))
	for key, value := range doc {
		if key == "_id" {
			continue
		}
		data[key] = normalize(value)
	}
	return remote.Record{ID: id, Data: data}
}

// normalize converts driver types into the shapes JSON decoding produces,
// so records look the same whichever store returned them.
func normalize(value any) any {
	switch v := value.(type) {
	case bson.M:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, elem := range v {
			out[elem.Key] = normalize(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case primitive.DateTime:
		return remote.FormatTime(v.Time())
	case primitive.ObjectID:
		return v.Hex()
	default:
		return v
	}
}
