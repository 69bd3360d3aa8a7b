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

type mongoConversationRepo struct {
	client *mongo.Client
	convs  *mongo.Collection
	states *mongo.Collection
}

func NewConversationRepo(client *mongo.Client, db *mongo.Database) ConversationRepo {
	return &mongoConversationRepo{
		client: client,
		convs:  db.Collection(collConversations),
		states: db.Collection(collParticipantStates),
	}
}

func (r *mongoConversationRepo) Create(ctx context.Context, conv *domain.Conversation, caller, counterpart *domain.ParticipantState) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.convs.InsertOne(sc, conv); err != nil {
			return nil, err
		}
		for _, st := range []*domain.ParticipantState{caller, counterpart} {
			_, err := r.states.UpdateOne(sc,
				bson.M{"conversation_id": st.ConversationID, "user_id": st.UserID},
				bson.M{"$setOnInsert": st},
				options.Update().SetUpsert(true),
			)
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if isDup(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.convs.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) FindByPairContext(ctx context.Context, lo, hi string, cc domain.ConversationContext) (*domain.Conversation, error) {
	filter := bson.M{
		"participant_lo":         lo,
		"participant_hi":         hi,
		"context.application_id": cc.ApplicationID,
		"context.job_id":         cc.JobID,
		"context.company_id":     cc.CompanyID,
	}
	var c domain.Conversation
	err := r.convs.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) SetLastMessage(ctx context.Context, convID, messageID string, at time.Time) error {
	_, err := r.convs.UpdateOne(ctx, bson.M{"_id": convID}, bson.M{"$set": bson.M{
		"last_message_id": messageID,
		"last_message_at": at,
		"updated_at":      at,
	}})
	return err
}

func (r *mongoConversationRepo) ListForUser(ctx context.Context, userID string, filter domain.ConversationListFilter, before time.Time, limit int64) ([]domain.ConversationSummary, error) {
	stateFilter := bson.M{"user_id": userID}
	switch filter {
	case domain.FilterRequests:
		stateFilter["request_state"] = domain.RequestStatePending
		stateFilter["archived_at"] = nil
	case domain.FilterArchived:
		stateFilter["archived_at"] = bson.M{"$ne": nil}
	default: // inbox
		stateFilter["request_state"] = domain.RequestStateAccepted
		stateFilter["archived_at"] = nil
	}

	cur, err := r.states.Find(ctx, stateFilter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	byConv := map[string]domain.ParticipantState{}
	ids := make([]string, 0)
	for cur.Next(ctx) {
		var st domain.ParticipantState
		if err := cur.Decode(&st); err != nil {
			return nil, err
		}
		byConv[st.ConversationID] = st
		ids = append(ids, st.ConversationID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	convFilter := bson.M{"_id": bson.M{"$in": ids}}
	if !before.IsZero() {
		convFilter["last_message_at"] = bson.M{"$lt": before}
	}
	ccur, err := r.convs.Find(ctx, convFilter, options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer ccur.Close(ctx)

	var out []domain.ConversationSummary
	for ccur.Next(ctx) {
		var c domain.Conversation
		if err := ccur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, domain.ConversationSummary{Conversation: c, State: byConv[c.ID]})
	}
	return out, nil
}

func (r *mongoConversationRepo) GetState(ctx context.Context, convID, userID string) (*domain.ParticipantState, error) {
	var st domain.ParticipantState
	err := r.states.FindOne(ctx, bson.M{"conversation_id": convID, "user_id": userID}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *mongoConversationRepo) SetRequestState(ctx context.Context, convID, userID string, state domain.RequestState) error {
	return r.updateState(ctx, convID, userID, bson.M{"request_state": state})
}

func (r *mongoConversationRepo) SetMuted(ctx context.Context, convID, userID string, at *time.Time) error {
	return r.updateState(ctx, convID, userID, bson.M{"muted_at": at})
}

func (r *mongoConversationRepo) SetArchived(ctx context.Context, convID, userID string, at *time.Time) error {
	return r.updateState(ctx, convID, userID, bson.M{"archived_at": at})
}

func (r *mongoConversationRepo) MarkRead(ctx context.Context, convID, userID, messageID string, at time.Time) error {
	return r.updateState(ctx, convID, userID, bson.M{
		"last_read_at":         at,
		"last_read_message_id": messageID,
		"unread_count":         int64(0),
	})
}

func (r *mongoConversationRepo) IncrementUnread(ctx context.Context, convID, userID string) error {
	res, err := r.states.UpdateOne(ctx,
		bson.M{"conversation_id": convID, "user_id": userID},
		bson.M{"$inc": bson.M{"unread_count": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoConversationRepo) updateState(ctx context.Context, convID, userID string, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := r.states.UpdateOne(ctx,
		bson.M{"conversation_id": convID, "user_id": userID},
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

func (r *mongoConversationRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.convs.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
}

func (r *mongoConversationRepo) CountStatesByRequest(ctx context.Context, state domain.RequestState) (int64, error) {
	return r.states.CountDocuments(ctx, bson.M{"request_state": state})
}
