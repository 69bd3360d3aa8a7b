package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/splits-network/messaging-service/internal/domain"
)

type mongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &mongoMessageRepo{coll: db.Collection(collMessages)}
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, m)
	if isDup(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) FindByClientToken(ctx context.Context, senderID, token string) (*domain.Message, error) {
	var m domain.Message
	err := r.coll.FindOne(ctx, bson.M{"sender_id": senderID, "client_message_id": token}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) List(ctx context.Context, convID string, after, before time.Time, limit int64) ([]domain.Message, error) {
	filter := bson.M{"conversation_id": convID}
	created := bson.M{}
	if !after.IsZero() {
		created["$gt"] = after
	}
	if !before.IsZero() {
		created["$lt"] = before
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	// Page from the newest end, then flip to delivery order.
	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Message
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *mongoMessageRepo) CountInConversation(ctx context.Context, convID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"conversation_id": convID})
}

func (r *mongoMessageRepo) SetModerationFlag(ctx context.Context, messageID string, flag domain.ModerationFlag) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{"metadata.moderation": flag}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoMessageRepo) FindUnredactedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]domain.Message, error) {
	cur, err := r.coll.Find(ctx, bson.M{
		"redacted_at": nil,
		"created_at":  bson.M{"$lt": cutoff},
	}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Message
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *mongoMessageRepo) RedactByIDs(ctx context.Context, ids []string, reason string, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "redacted_at": nil},
		bson.M{"$set": bson.M{
			"body":             nil,
			"redacted_at":      at,
			"redaction_reason": reason,
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessageRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
}
