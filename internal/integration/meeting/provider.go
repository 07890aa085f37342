// Package meeting creates video sessions for booked mentorship slots.
package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
)

var (
	ErrDisabled    = errors.New("meeting provider is not configured")
	ErrEmptyURL    = errors.New("meeting provider returned empty url")
	ErrBadResponse = errors.New("meeting provider returned unexpected status")
)

// HTTPProvider calls a JSON endpoint that creates a session and returns
// {"url": "..."}.
type HTTPProvider struct {
	endpoint string
	token    string
	client   *http.Client
}

type Option func(*HTTPProvider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *HTTPProvider) {
		if c != nil {
			p.client = c
		}
	}
}

func NewHTTPProvider(endpoint, token string, opts ...Option) *HTTPProvider {
	p := &HTTPProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type createSessionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Attendees   []string  `json:"attendees"`
}

type createSessionResponse struct {
	URL string `json:"url"`
}

// CreateSession honours ctx cancellation; the caller sets the deadline.
func (p *HTTPProvider) CreateSession(ctx context.Context, req model.MeetingRequest) (string, error) {
	body, err := json.Marshal(createSessionRequest{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.Start.UTC(),
		EndTime:     req.End.UTC(),
		Attendees:   req.AttendeeEmails,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: %d", ErrBadResponse, resp.StatusCode)
	}

	var out createSessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", ErrEmptyURL
	}

	return out.URL, nil
}

// Disabled is used when no provider endpoint is configured; every booking
// then gets a placeholder link.
type Disabled struct{}

func (Disabled) CreateSession(context.Context, model.MeetingRequest) (string, error) {
	return "", ErrDisabled
}
