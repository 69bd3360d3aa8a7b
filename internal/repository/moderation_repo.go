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

type mongoModerationRepo struct {
	blocks  *mongo.Collection
	reports *mongo.Collection
	audit   *mongo.Collection
}

func NewModerationRepo(db *mongo.Database) ModerationRepo {
	return &mongoModerationRepo{
		blocks:  db.Collection(collBlocks),
		reports: db.Collection(collReports),
		audit:   db.Collection(collAudit),
	}
}

func (r *mongoModerationRepo) InsertBlock(ctx context.Context, b *domain.UserBlock) error {
	_, err := r.blocks.InsertOne(ctx, b)
	if isDup(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoModerationRepo) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	res, err := r.blocks.DeleteOne(ctx, bson.M{"blocker_id": blockerID, "blocked_id": blockedID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// BlockedBetween is symmetric: a block in either direction blocks both ways.
func (r *mongoModerationRepo) BlockedBetween(ctx context.Context, a, b string) (bool, error) {
	n, err := r.blocks.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"blocker_id": a, "blocked_id": b},
		bson.M{"blocker_id": b, "blocked_id": a},
	}})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *mongoModerationRepo) InsertReport(ctx context.Context, rep *domain.Report) error {
	_, err := r.reports.InsertOne(ctx, rep)
	return err
}

func (r *mongoModerationRepo) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	var rep domain.Report
	err := r.reports.FindOne(ctx, bson.M{"_id": id}).Decode(&rep)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *mongoModerationRepo) ListReports(ctx context.Context, status domain.ReportStatus, limit, offset int64) ([]domain.Report, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := r.reports.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Report
	for cur.Next(ctx) {
		var rep domain.Report
		if err := cur.Decode(&rep); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func (r *mongoModerationRepo) SetReportStatus(ctx context.Context, id string, status domain.ReportStatus) error {
	res, err := r.reports.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoModerationRepo) InsertAudit(ctx context.Context, a *domain.ModerationAudit) error {
	_, err := r.audit.InsertOne(ctx, a)
	return err
}

func (r *mongoModerationRepo) ListAudit(ctx context.Context, limit, offset int64) ([]domain.ModerationAudit, error) {
	cur, err := r.audit.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.ModerationAudit
	for cur.Next(ctx) {
		var a domain.ModerationAudit
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *mongoModerationRepo) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.audit.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *mongoModerationRepo) CountBlocksSince(ctx context.Context, since time.Time) (int64, error) {
	return r.blocks.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
}

func (r *mongoModerationRepo) CountReportsSince(ctx context.Context, since time.Time) (int64, error) {
	return r.reports.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
}
