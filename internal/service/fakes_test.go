package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/repository"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// ---- conversation repo ----

type memConvRepo struct {
	mu         sync.Mutex
	convs      map[string]*domain.Conversation
	states     map[string]*domain.ParticipantState
	createErr  error
	findMisses int // force ErrNotFound on the next N pair lookups
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{
		convs:  map[string]*domain.Conversation{},
		states: map[string]*domain.ParticipantState{},
	}
}

func stateKey(convID, userID string) string { return convID + "/" + userID }

func (r *memConvRepo) Create(_ context.Context, conv *domain.Conversation, caller, counterpart *domain.ParticipantState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.convs {
		if existing.ParticipantLo == conv.ParticipantLo &&
			existing.ParticipantHi == conv.ParticipantHi &&
			existing.Context == conv.Context {
			return repository.ErrDuplicate
		}
	}
	cc := *conv
	r.convs[conv.ID] = &cc
	cs, ps := *caller, *counterpart
	r.states[stateKey(conv.ID, caller.UserID)] = &cs
	r.states[stateKey(conv.ID, counterpart.UserID)] = &ps
	return nil
}

func (r *memConvRepo) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memConvRepo) FindByPairContext(_ context.Context, lo, hi string, cc domain.ConversationContext) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findMisses > 0 {
		r.findMisses--
		return nil, repository.ErrNotFound
	}
	for _, c := range r.convs {
		if c.ParticipantLo == lo && c.ParticipantHi == hi && c.Context == cc {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memConvRepo) SetLastMessage(_ context.Context, convID, messageID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[convID]
	if !ok {
		return repository.ErrNotFound
	}
	c.LastMessageID = messageID
	t := at
	c.LastMessageAt = &t
	return nil
}

func (r *memConvRepo) ListForUser(_ context.Context, userID string, filter domain.ConversationListFilter, _ time.Time, limit int64) ([]domain.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ConversationSummary
	for _, st := range r.states {
		if st.UserID != userID {
			continue
		}
		switch filter {
		case domain.FilterRequests:
			if st.RequestState != domain.RequestStatePending {
				continue
			}
		case domain.FilterArchived:
			if !st.Archived() {
				continue
			}
		default:
			if st.Archived() || st.RequestState == domain.RequestStateDeclined {
				continue
			}
		}
		conv := r.convs[st.ConversationID]
		out = append(out, domain.ConversationSummary{Conversation: *conv, State: *st})
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *memConvRepo) GetState(_ context.Context, convID, userID string) (*domain.ParticipantState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[stateKey(convID, userID)]; ok {
		out := *st
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memConvRepo) SetRequestState(_ context.Context, convID, userID string, state domain.RequestState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[stateKey(convID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	st.RequestState = state
	return nil
}

func (r *memConvRepo) SetMuted(_ context.Context, convID, userID string, at *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[stateKey(convID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	st.MutedAt = at
	return nil
}

func (r *memConvRepo) SetArchived(_ context.Context, convID, userID string, at *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[stateKey(convID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	st.ArchivedAt = at
	return nil
}

func (r *memConvRepo) MarkRead(_ context.Context, convID, userID, messageID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[stateKey(convID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	st.LastReadAt = &t
	st.LastReadMessageID = messageID
	st.UnreadCount = 0
	return nil
}

func (r *memConvRepo) IncrementUnread(_ context.Context, convID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[stateKey(convID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	st.UnreadCount++
	return nil
}

func (r *memConvRepo) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.convs {
		if c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *memConvRepo) CountStatesByRequest(_ context.Context, state domain.RequestState) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, st := range r.states {
		if st.RequestState == state {
			n++
		}
	}
	return n, nil
}

// ---- message repo ----

type memMsgRepo struct {
	mu   sync.Mutex
	msgs map[string]*domain.Message
}

func newMemMsgRepo() *memMsgRepo { return &memMsgRepo{msgs: map[string]*domain.Message{}} }

func (r *memMsgRepo) Insert(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ClientMessageID != nil {
		for _, existing := range r.msgs {
			if existing.SenderID == m.SenderID &&
				existing.ClientMessageID != nil &&
				*existing.ClientMessageID == *m.ClientMessageID {
				return repository.ErrDuplicate
			}
		}
	}
	mm := *m
	r.msgs[m.ID] = &mm
	return nil
}

func (r *memMsgRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.msgs[id]; ok {
		out := *m
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memMsgRepo) FindByClientToken(_ context.Context, senderID, token string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.SenderID == senderID && m.ClientMessageID != nil && *m.ClientMessageID == token {
			out := *m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memMsgRepo) List(_ context.Context, convID string, after, before time.Time, limit int64) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.msgs {
		if m.ConversationID != convID {
			continue
		}
		if !after.IsZero() && !m.CreatedAt.After(after) {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMsgRepo) CountInConversation(_ context.Context, convID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ConversationID == convID {
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) SetModerationFlag(_ context.Context, messageID string, flag domain.ModerationFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[messageID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	m.Metadata["moderation"] = flag
	return nil
}

func (r *memMsgRepo) FindUnredactedBefore(_ context.Context, cutoff time.Time, limit int64) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.msgs {
		if m.RedactedAt == nil && m.CreatedAt.Before(cutoff) {
			out = append(out, *m)
			if int64(len(out)) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memMsgRepo) RedactByIDs(_ context.Context, ids []string, reason string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := r.msgs[id]
		if !ok || m.RedactedAt != nil {
			continue
		}
		m.Body = nil
		t := at
		m.RedactedAt = &t
		m.RedactionReason = reason
		n++
	}
	return n, nil
}

func (r *memMsgRepo) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// ---- attachment repo ----

type memAttRepo struct {
	mu   sync.Mutex
	atts map[string]*domain.Attachment
}

func newMemAttRepo() *memAttRepo { return &memAttRepo{atts: map[string]*domain.Attachment{}} }

func (r *memAttRepo) Insert(_ context.Context, a *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	aa := *a
	r.atts[a.ID] = &aa
	return nil
}

func (r *memAttRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.atts[id]; ok {
		out := *a
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memAttRepo) UpdateStatus(_ context.Context, id string, from, to domain.AttachmentStatus, result domain.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.atts[id]
	if !ok || a.Status != from {
		return repository.ErrNotFound
	}
	a.Status = to
	if result != "" {
		a.ScanResult = result
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memAttRepo) MarkDeleted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.atts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = domain.AttachmentDeleted
	a.UpdatedAt = at
	return nil
}

func (r *memAttRepo) FindAgedBefore(_ context.Context, cutoff time.Time, limit int64) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.atts {
		if a.Status != domain.AttachmentDeleted && a.CreatedAt.Before(cutoff) {
			out = append(out, *a)
			if int64(len(out)) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memAttRepo) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.atts {
		if a.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// ---- moderation repo ----

type memModRepo struct {
	mu      sync.Mutex
	blocks  map[string]*domain.UserBlock
	reports map[string]*domain.Report
	audit   []domain.ModerationAudit
}

func newMemModRepo() *memModRepo {
	return &memModRepo{
		blocks:  map[string]*domain.UserBlock{},
		reports: map[string]*domain.Report{},
	}
}

func (r *memModRepo) InsertBlock(_ context.Context, b *domain.UserBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := b.BlockerID + "/" + b.BlockedID
	if _, ok := r.blocks[key]; ok {
		return repository.ErrDuplicate
	}
	bb := *b
	r.blocks[key] = &bb
	return nil
}

func (r *memModRepo) DeleteBlock(_ context.Context, blockerID, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := blockerID + "/" + blockedID
	if _, ok := r.blocks[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.blocks, key)
	return nil
}

func (r *memModRepo) BlockedBetween(_ context.Context, a, b string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, x := r.blocks[a+"/"+b]
	_, y := r.blocks[b+"/"+a]
	return x || y, nil
}

func (r *memModRepo) InsertReport(_ context.Context, rep *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr := *rep
	r.reports[rep.ID] = &rr
	return nil
}

func (r *memModRepo) GetReport(_ context.Context, id string) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.reports[id]; ok {
		out := *rep
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memModRepo) ListReports(_ context.Context, status domain.ReportStatus, limit, _ int64) ([]domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Report
	for _, rep := range r.reports {
		if status != "" && rep.Status != status {
			continue
		}
		out = append(out, *rep)
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *memModRepo) SetReportStatus(_ context.Context, id string, status domain.ReportStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	rep.Status = status
	return nil
}

func (r *memModRepo) InsertAudit(_ context.Context, a *domain.ModerationAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, *a)
	return nil
}

func (r *memModRepo) ListAudit(_ context.Context, limit, _ int64) ([]domain.ModerationAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.ModerationAudit{}, r.audit...)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memModRepo) PurgeAuditBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.ModerationAudit
	var purged int64
	for _, a := range r.audit {
		if a.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, a)
	}
	r.audit = kept
	return purged, nil
}

func (r *memModRepo) CountBlocksSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.blocks {
		if b.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *memModRepo) CountReportsSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rep := range r.reports {
		if rep.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// ---- retention repo ----

type memRetRepo struct {
	mu   sync.Mutex
	cfg  *domain.RetentionConfig
	runs map[string]*domain.RetentionRun
	last *domain.RetentionRun
}

func newMemRetRepo() *memRetRepo { return &memRetRepo{runs: map[string]*domain.RetentionRun{}} }

func (r *memRetRepo) GetConfig(_ context.Context) (*domain.RetentionConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return nil, repository.ErrNotFound
	}
	out := *r.cfg
	return &out, nil
}

func (r *memRetRepo) StartRun(_ context.Context, run *domain.RetentionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr := *run
	r.runs[run.ID] = &rr
	return nil
}

func (r *memRetRepo) FinishRun(_ context.Context, run *domain.RetentionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.runs[run.ID]
	if !ok || existing.Status != domain.RetentionRunning {
		return repository.ErrNotFound
	}
	rr := *run
	r.runs[run.ID] = &rr
	r.last = &rr
	return nil
}

func (r *memRetRepo) LastRun(_ context.Context) (*domain.RetentionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil, repository.ErrNotFound
	}
	out := *r.last
	return &out, nil
}

// ---- outbox / notifier / blobs ----

type capturedNotification struct {
	Channel string
	Notif   domain.Notification
}

type memNotifier struct {
	mu   sync.Mutex
	sent []capturedNotification
}

func (n *memNotifier) Publish(_ context.Context, channel string, notif domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, capturedNotification{Channel: channel, Notif: notif})
}

func (n *memNotifier) byType(t string) []capturedNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []capturedNotification
	for _, s := range n.sent {
		if s.Notif.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type capturedEvent struct {
	Type    string
	Payload any
}

type memOutbox struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (o *memOutbox) Emit(_ context.Context, eventType string, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, capturedEvent{Type: eventType, Payload: payload})
}

func (o *memOutbox) byType(t string) []capturedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []capturedEvent
	for _, e := range o.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memBlobs struct {
	mu       sync.Mutex
	deleted  []string
	failKeys map[string]bool
}

func (b *memBlobs) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://blobs.test/upload/" + key, nil
}

func (b *memBlobs) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/download/" + key, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failKeys[key] {
		return errors.New("storage unavailable")
	}
	b.deleted = append(b.deleted, key)
	return nil
}
