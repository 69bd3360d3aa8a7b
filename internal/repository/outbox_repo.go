package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/splits-network/messaging-service/internal/domain"
)

type mongoOutboxRepo struct {
	coll *mongo.Collection
}

func NewOutboxRepo(db *mongo.Database) OutboxRepo {
	return &mongoOutboxRepo{coll: db.Collection(collOutbox)}
}

func (r *mongoOutboxRepo) Append(ctx context.Context, ev *domain.OutboxEvent) error {
	_, err := r.coll.InsertOne(ctx, ev)
	return err
}

func (r *mongoOutboxRepo) FetchPending(ctx context.Context, limit int64) ([]domain.OutboxEvent, error) {
	cur, err := r.coll.Find(ctx, bson.M{"delivered": false}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.OutboxEvent
	for cur.Next(ctx) {
		var ev domain.OutboxEvent
		if err := cur.Decode(&ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *mongoOutboxRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"delivered": true, "delivered_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoOutboxRepo) IncrementAttempts(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attempts": 1}})
	return err
}
