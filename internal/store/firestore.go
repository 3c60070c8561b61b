package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection names.
const (
	collTriages  = "triages"
	collFeedback = "triage_feedback"
)

// FirestoreConfig configures the Firestore-backed store.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
}

// Firestore persists triage records in Cloud Firestore.
type Firestore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestore connects to the configured Firestore project.
func NewFirestore(ctx context.Context, cfg FirestoreConfig, logger *zap.Logger) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	logger.Info("firestore store connected", zap.String("project_id", cfg.ProjectID))
	return &Firestore{client: client, logger: logger}, nil
}

func (f *Firestore) SaveTriage(ctx context.Context, rec *TriageRecord) (string, error) {
	stored := *rec
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	ref, _, err := f.client.Collection(collTriages).Add(ctx, &stored)
	if err != nil {
		return "", fmt.Errorf("failed to save triage: %w", err)
	}

	f.logger.Debug("triage saved", zap.String("id", ref.ID), zap.String("ticket", rec.TicketNumber))
	return ref.ID, nil
}

func (f *Firestore) GetTriage(ctx context.Context, id string) (*TriageRecord, error) {
	doc, err := f.client.Collection(collTriages).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get triage: %w", err)
	}

	var rec TriageRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode triage: %w", err)
	}
	rec.ID = doc.Ref.ID
	return &rec, nil
}

func (f *Firestore) ListByTicket(ctx context.Context, ticketNumber string) ([]TriageSummary, error) {
	// No order-by clause: combined with the equality filter it would need
	// a composite index. Sorting happens client side instead.
	iter := f.client.Collection(collTriages).
		Where("ticket_number", "==", ticketNumber).
		Documents(ctx)

	records, err := collectTriages(iter)
	if err != nil {
		return nil, err
	}

	out := make([]TriageSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, summaryOf(rec))
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *Firestore) RecentTriages(ctx context.Context, limit int) ([]TriageSummary, error) {
	q := f.client.Collection(collTriages).
		OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	records, err := collectTriages(q.Documents(ctx))
	if err != nil {
		return nil, err
	}

	out := make([]TriageSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, summaryOf(rec))
	}
	return out, nil
}

func (f *Firestore) MarkUsed(ctx context.Context, id string) error {
	_, err := f.client.Collection(collTriages).Doc(id).Update(ctx, []firestore.Update{
		{Path: "used", Value: true},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to mark triage as used: %w", err)
	}
	return nil
}

func (f *Firestore) SaveFeedback(ctx context.Context, fb *FeedbackRecord) (string, error) {
	stored := *fb
	stored.CreatedAt = time.Now().UTC()

	ref, _, err := f.client.Collection(collFeedback).Add(ctx, &stored)
	if err != nil {
		return "", fmt.Errorf("failed to save feedback: %w", err)
	}
	return ref.ID, nil
}

func (f *Firestore) Stats(ctx context.Context, days int) (*StatsReport, error) {
	// Streams the full collection and filters by date locally, avoiding a
	// range-filter index requirement. Acceptable at triage volumes.
	records, err := collectTriages(f.client.Collection(collTriages).Documents(ctx))
	if err != nil {
		return nil, err
	}
	return buildStats(records, days, time.Now().UTC()), nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

// Client exposes the underlying Firestore client so the upstream
// integration can share the connection.
func (f *Firestore) Client() *firestore.Client {
	return f.client
}

var _ Store = (*Firestore)(nil)

func collectTriages(iter *firestore.DocumentIterator) ([]*TriageRecord, error) {
	defer iter.Stop()

	var out []*TriageRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read triages: %w", err)
		}

		var rec TriageRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode triage %s: %w", doc.Ref.ID, err)
		}
		rec.ID = doc.Ref.ID
		out = append(out, &rec)
	}
	return out, nil
}
