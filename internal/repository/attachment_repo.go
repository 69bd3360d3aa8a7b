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

type mongoAttachmentRepo struct {
	coll *mongo.Collection
}

func NewAttachmentRepo(db *mongo.Database) AttachmentRepo {
	return &mongoAttachmentRepo{coll: db.Collection(collAttachments)}
}

func (r *mongoAttachmentRepo) Insert(ctx context.Context, a *domain.Attachment) error {
	_, err := r.coll.InsertOne(ctx, a)
	return err
}

func (r *mongoAttachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	var a domain.Attachment
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *mongoAttachmentRepo) UpdateStatus(ctx context.Context, id string, from, to domain.AttachmentStatus, result domain.ScanResult) error {
	set := bson.M{"status": to, "updated_at": time.Now().UTC()}
	if result != "" {
		set["scan_result"] = result
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoAttachmentRepo) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": domain.AttachmentDeleted, "updated_at": at}},
	)
	return err
}

func (r *mongoAttachmentRepo) FindAgedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]domain.Attachment, error) {
	cur, err := r.coll.Find(ctx, bson.M{
		"status":     bson.M{"$ne": domain.AttachmentDeleted},
		"created_at": bson.M{"$lt": cutoff},
	}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Attachment
	for cur.Next(ctx) {
		var a domain.Attachment
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *mongoAttachmentRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
}
