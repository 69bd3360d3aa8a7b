package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/splits-network/messaging-service/internal/config"
)

const (
	collConversations     = "conversations"
	collParticipantStates = "participant_states"
	collMessages          = "messages"
	collAttachments       = "attachments"
	collBlocks            = "user_blocks"
	collReports           = "reports"
	collAudit             = "moderation_audit"
	collRetentionConfig   = "retention_config"
	collRetentionRuns     = "retention_runs"
	collOutbox            = "outbox"
)

func NewMongoClient(cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the pipeline's race-safety depends on:
// the canonical pair+context uniqueness and the per-sender idempotency
// token uniqueness. Safe to run on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collConversations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "participant_lo", Value: 1},
			{Key: "participant_hi", Value: 1},
			{Key: "context.application_id", Value: 1},
			{Key: "context.job_id", Value: 1},
			{Key: "context.company_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collParticipantStates).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "client_message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"client_message_id": bson.M{"$type": "string"}},
			),
		},
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "redacted_at", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collBlocks).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "blocker_id", Value: 1}, {Key: "blocked_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collOutbox).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "delivered", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func isDup(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
