// Package gateway is a thin typed client over the platform API. All
// business logic (scoring, moderation, featured selection) lives behind
// this boundary; the client only shapes requests and decodes responses.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
)

type Client struct {
	base string
	http *http.Client
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url not configured")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

// GetQuiz fetches a quiz with its ordered questions. The API nests the
// quiz under a data envelope.
func (c *Client) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var envelope struct {
		Data domain.Quiz `json:"data"`
	}
	err := c.get(ctx, fmt.Sprintf("/quiz/%d/", quizID), nil, &envelope)
	if err != nil {
		if isNotFound(err) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, err
	}
	return envelope.Data, nil
}

// SubmitQuiz sends a full submission for scoring.
func (c *Client) SubmitQuiz(ctx context.Context, quizID int64, sub domain.Submission) (domain.SubmissionResult, error) {
	var result domain.SubmissionResult
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/quiz/%d/submit/", quizID), sub, &result)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return result, nil
}

// GetReview fetches the per-question review for a past submission,
// keyed by the guest credential.
func (c *Client) GetReview(ctx context.Context, quizID int64, id guest.Identity) (domain.Review, error) {
	var review domain.Review
	err := c.get(ctx, fmt.Sprintf("/quiz/%d/review/", quizID), url.Values{"guest_id": {id.String()}}, &review)
	if err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// TodayQuizzes lists today's quizzes with the guest's attempt state.
func (c *Client) TodayQuizzes(ctx context.Context, id guest.Identity) ([]domain.QuizListing, error) {
	var listings []domain.QuizListing
	err := c.get(ctx, "/currentaffairs/today/", url.Values{"guest_id": {id.String()}}, &listings)
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// RecentQuizzes pages through past quizzes for the guest.
func (c *Client) RecentQuizzes(ctx context.Context, id guest.Identity, page int) (domain.QuizListingPage, error) {
	q := url.Values{"guest_id": {id.String()}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	var listing domain.QuizListingPage
	err := c.get(ctx, "/currentaffairs/recent/", q, &listing)
	if err != nil {
		return domain.QuizListingPage{}, err
	}
	return listing, nil
}

// FeaturedDiscussion returns the current featured prompt, or nil when
// nothing is featured.
func (c *Client) FeaturedDiscussion(ctx context.Context) (*domain.Discussion, error) {
	var envelope struct {
		Data *domain.Discussion `json:"data"`
	}
	if err := c.get(ctx, "/discussion/featured/", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func (c *Client) RecentDiscussions(ctx context.Context) ([]domain.Discussion, error) {
	var out []domain.Discussion
	if err := c.get(ctx, "/discussion/recent/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AllDiscussions(ctx context.Context) ([]domain.Discussion, error) {
	var out []domain.Discussion
	if err := c.get(ctx, "/discussion/all/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DiscussionByID(ctx context.Context, id int64) (domain.Discussion, error) {
	var out domain.Discussion
	err := c.get(ctx, fmt.Sprintf("/discussion/%d/", id), nil, &out)
	if err != nil {
		if isNotFound(err) {
			return domain.Discussion{}, fmt.Errorf("discussion %d: %w", id, err)
		}
		return domain.Discussion{}, err
	}
	return out, nil
}

// ListThoughts fetches one page of thoughts for a discussion prompt.
func (c *Client) ListThoughts(ctx context.Context, promptID int64, page int) (domain.ThoughtPage, error) {
	q := url.Values{}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	var out domain.ThoughtPage
	err := c.get(ctx, fmt.Sprintf("/discussion/%d/thoughts/", promptID), q, &out)
	if err != nil {
		return domain.ThoughtPage{}, err
	}
	return out, nil
}

func (c *Client) CreateThought(ctx context.Context, payload domain.ThoughtDraft) (domain.Thought, error) {
	var out domain.Thought
	err := c.send(ctx, http.MethodPost, "/thought/create/", payload, &out)
	if err != nil {
		return domain.Thought{}, err
	}
	return out, nil
}

func (c *Client) EditThought(ctx context.Context, thoughtID int64, payload domain.ThoughtDraft) (domain.Thought, error) {
	var out domain.Thought
	err := c.send(ctx, http.MethodPut, fmt.Sprintf("/thought/%d/", thoughtID), payload, &out)
	if err != nil {
		return domain.Thought{}, err
	}
	return out, nil
}

func (c *Client) DeleteThought(ctx context.Context, thoughtID int64, id guest.Identity) error {
	path := fmt.Sprintf("/thought/%d/?guest_id=%s", thoughtID, url.QueryEscape(id.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+path, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return &statusError{status: res.StatusCode, op: "delete thought"}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, path, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return &statusError{status: res.StatusCode, op: req.Method + " " + path}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type statusError struct {
	status int
	op     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.op, e.status)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}
