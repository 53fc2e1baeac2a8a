// Package mongo reads diner selection documents from MongoDB.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chrisdamba/messforecast/internal/models"
)

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error pinging mongo: %w", err)
	}
	return client, nil
}

type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository reads from collection, which may hold order documents ("selected") or
// buyer documents ("this").
func NewOrderRepository(db *mongo.Database, collection string) *OrderRepository {
	return &OrderRepository{coll: db.Collection(collection)}
}

func (r *OrderRepository) ListRaw(ctx context.Context) ([]map[string]interface{}, error) {
	cur, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []map[string]interface{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, plain(doc).(map[string]interface{}))
	}
	return docs, cur.Err()
}

func (r *OrderRepository) BulkCreate(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	docs := make([]interface{}, len(orders))
	for i, o := range orders {
		selections := bson.M{}
		for day, meals := range o.Selections {
			m := bson.M{}
			for slot, chosen := range meals {
				m[string(slot)] = chosen
			}
			selections[string(day)] = m
		}
		docs[i] = bson.M{
			"_id":        o.ID,
			"user_id":    o.UserID,
			"status":     o.Status,
			"created_at": o.CreatedAt,
			"selections": selections,
		}
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

func (r *OrderRepository) DeleteAll(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.D{})
	return err
}

// plain converts nested bson.M, bson.D and bson.A values into plain maps and slices.
func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	}
	return v
}
