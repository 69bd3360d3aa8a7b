package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/splits-network/messaging-service/internal/domain"
)

type mongoRetentionRepo struct {
	config *mongo.Collection
	runs   *mongo.Collection
}

func NewRetentionRepo(db *mongo.Database) RetentionRepo {
	return &mongoRetentionRepo{
		config: db.Collection(collRetentionConfig),
		runs:   db.Collection(collRetentionRuns),
	}
}

func (r *mongoRetentionRepo) GetConfig(ctx context.Context) (*domain.RetentionConfig, error) {
	var c domain.RetentionConfig
	err := r.config.FindOne(ctx, bson.M{}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoRetentionRepo) StartRun(ctx context.Context, run *domain.RetentionRun) error {
	_, err := r.runs.InsertOne(ctx, run)
	return err
}

func (r *mongoRetentionRepo) FinishRun(ctx context.Context, run *domain.RetentionRun) error {
	res, err := r.runs.UpdateOne(ctx,
		bson.M{"_id": run.ID, "status": domain.RetentionRunning},
		bson.M{"$set": bson.M{
			"status":              run.Status,
			"messages_redacted":   run.MessagesRedacted,
			"attachments_deleted": run.AttachmentsDeleted,
			"audit_rows_purged":   run.AuditRowsPurged,
			"error":               run.Error,
			"finished_at":         run.FinishedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRetentionRepo) LastRun(ctx context.Context) (*domain.RetentionRun, error) {
	var run domain.RetentionRun
	err := r.runs.FindOne(ctx, bson.M{}, options.FindOne().
		SetSort(bson.D{{Key: "started_at", Value: -1}})).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
