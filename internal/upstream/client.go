// Package upstream integrates with the main ticketing system that
// produces the analyses triaged tickets originate from.
//
// Lookups go to Firestore first when it is configured, with an HTTP
// fallback against the main system's API. Upstream failures are soft:
// callers get ErrNotFound and triage proceeds without ticket context.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// ErrNotFound is returned when no analysis exists for a ticket.
var ErrNotFound = errors.New("analysis not found")

const (
	// collAnalyses is the main system's Firestore collection. Read only.
	collAnalyses = "analyses"

	defaultTimeout = 30 * time.Second
	pingTimeout    = 10 * time.Second
)

// Analysis is a ticket analysis produced by the main system.
type Analysis struct {
	ID              string    `json:"id" firestore:"-"`
	TicketNumber    string    `json:"ticket_number" firestore:"ticket_number"`
	GeneratedTicket string    `json:"generated_ticket,omitempty" firestore:"generated_ticket,omitempty"`
	Module          string    `json:"module,omitempty" firestore:"module,omitempty"`
	Kind            string    `json:"kind,omitempty" firestore:"kind,omitempty"`
	User            string    `json:"user,omitempty" firestore:"user,omitempty"`
	Client          string    `json:"client,omitempty" firestore:"client,omitempty"`
	Title           string    `json:"title,omitempty" firestore:"title,omitempty"`
	AnalyzedAt      time.Time `json:"analyzed_at" firestore:"analyzed_at"`
}

// Config configures the upstream client.
type Config struct {
	// BaseURL is the main system's HTTP address, used as fallback.
	BaseURL string

	// Timeout bounds fallback HTTP calls.
	Timeout time.Duration
}

// Client looks up ticket analyses in the main system.
type Client struct {
	fs         *firestore.Client // nil when Firestore is not configured
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an upstream client. fs may be nil, in which case only the
// HTTP fallback is used.
func New(cfg Config, fs *firestore.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		fs:         fs,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FindByTicket returns the most recent analysis for a ticket. Firestore
// is consulted first, then the main system's HTTP API. Unreachable
// backends report ErrNotFound rather than failing the triage.
func (c *Client) FindByTicket(ctx context.Context, ticketNumber string) (*Analysis, error) {
	if c.fs != nil {
		analysis, err := c.findInFirestore(ctx, ticketNumber)
		if err == nil {
			return analysis, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("firestore lookup failed, falling back to http",
				zap.String("ticket", ticketNumber), zap.Error(err))
		}
	}

	if c.baseURL == "" {
		return nil, ErrNotFound
	}

	analyses, err := c.fetchRecentHTTP(ctx)
	if err != nil {
		c.logger.Warn("upstream http lookup failed",
			zap.String("ticket", ticketNumber), zap.Error(err))
		return nil, ErrNotFound
	}

	for i := range analyses {
		if analyses[i].TicketNumber == ticketNumber {
			return &analyses[i], nil
		}
	}
	return nil, ErrNotFound
}

// RecentAnalyses returns the main system's latest analyses, most recent
// first. An empty slice is returned when the upstream is unreachable.
func (c *Client) RecentAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 10
	}

	if c.fs != nil {
		analyses, err := c.recentFromFirestore(ctx, limit)
		if err != nil {
			c.logger.Warn("firestore recent lookup failed, falling back to http", zap.Error(err))
		} else if len(analyses) > 0 {
			return analyses, nil
		}
	}

	if c.baseURL == "" {
		return []Analysis{}, nil
	}

	analyses, err := c.fetchRecentHTTP(ctx)
	if err != nil {
		c.logger.Warn("upstream http recent lookup failed", zap.Error(err))
		return []Analysis{}, nil
	}
	if len(analyses) > limit {
		analyses = analyses[:limit]
	}
	return analyses, nil
}

// Ping reports whether the main system's HTTP API is reachable.
func (c *Client) Ping(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// FirestoreConfigured reports whether the direct Firestore path is active.
func (c *Client) FirestoreConfigured() bool { return c.fs != nil }

func (c *Client) findInFirestore(ctx context.Context, ticketNumber string) (*Analysis, error) {
	// Equality filter only; ordering happens client side so no composite
	// index is needed on the main system's collection.
	iter := c.fs.Collection(collAnalyses).
		Where("ticket_number", "==", ticketNumber).
		Documents(ctx)

	analyses, err := collectAnalyses(iter)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].AnalyzedAt.After(analyses[j].AnalyzedAt)
	})
	return &analyses[0], nil
}

func (c *Client) recentFromFirestore(ctx context.Context, limit int) ([]Analysis, error) {
	iter := c.fs.Collection(collAnalyses).
		OrderBy("analyzed_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	return collectAnalyses(iter)
}

// recentResponse is the main system's /api/stats/recent payload.
type recentResponse struct {
	Analyses []Analysis `json:"analyses"`
}

func (c *Client) fetchRecentHTTP(ctx context.Context) ([]Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/stats/recent", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var payload recentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return payload.Analyses, nil
}

func collectAnalyses(iter *firestore.DocumentIterator) ([]Analysis, error) {
	defer iter.Stop()

	var out []Analysis
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read analyses: %w", err)
		}

		var a Analysis
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to decode analysis %s: %w", doc.Ref.ID, err)
		}
		a.ID = doc.Ref.ID
		out = append(out, a)
	}
	return out, nil
}
