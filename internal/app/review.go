package app

import (
	"context"

	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
)

// ReviewState is the lifecycle phase of a review session.
type ReviewState int

const (
	ReviewAwaitingIdentity ReviewState = iota
	ReviewLoading
	ReviewReady
	ReviewEmpty
	ReviewUnavailable
	ReviewNoIdentity
)

func (s ReviewState) String() string {
	switch s {
	case ReviewAwaitingIdentity:
		return "awaiting_identity"
	case ReviewLoading:
		return "loading"
	case ReviewReady:
		return "ready"
	case ReviewEmpty:
		return "empty"
	case ReviewUnavailable:
		return "unavailable"
	case ReviewNoIdentity:
		return "no_identity"
	}
	return "unknown"
}

// ReviewSource fetches the review for a past submission.
type ReviewSource interface {
	GetReview(ctx context.Context, quizID int64, id guest.Identity) (domain.Review, error)
}

// ReviewSession is a read-only paginated walk over a past submission's
// answers. The fetch is gated on identity availability: no request is
// issued until a valid guest identity is supplied, so the server never
// sees a review request without ownership context.
type ReviewSession struct {
	source ReviewSource
	quizID int64

	state  ReviewState
	review domain.Review
	index  int
}

func NewReviewSession(source ReviewSource, quizID int64) *ReviewSession {
	return &ReviewSession{source: source, quizID: quizID, state: ReviewAwaitingIdentity}
}

// Load moves the session out of AwaitingIdentity. Without a valid
// identity it lands in the terminal NoIdentity state and issues no fetch.
// An empty result set is a terminal empty-state view, not an error.
func (r *ReviewSession) Load(ctx context.Context, id guest.Identity) ReviewSnapshot {
	if r.state != ReviewAwaitingIdentity {
		return r.snapshot()
	}
	if !id.Valid() {
		r.state = ReviewNoIdentity
		return r.snapshot()
	}

	r.state = ReviewLoading
	review, err := r.source.GetReview(ctx, r.quizID, id)
	switch {
	case err != nil:
		r.state = ReviewUnavailable
	case len(review.Records) == 0:
		r.state = ReviewEmpty
	default:
		r.review = review
		r.state = ReviewReady
		r.index = 0
	}
	return r.snapshot()
}

// Next moves forward over the fixed sequence; no wraparound.
func (r *ReviewSession) Next() ReviewSnapshot {
	if r.state == ReviewReady && r.index < len(r.review.Records)-1 {
		r.index++
	}
	return r.snapshot()
}

// Prev moves back and is disabled at index 0.
func (r *ReviewSession) Prev() ReviewSnapshot {
	if r.state == ReviewReady && r.index > 0 {
		r.index--
	}
	return r.snapshot()
}

// Snapshot returns the current visible state.
func (r *ReviewSession) Snapshot() ReviewSnapshot {
	return r.snapshot()
}

func (r *ReviewSession) snapshot() ReviewSnapshot {
	snap := ReviewSnapshot{
		QuizID: r.quizID,
		State:  r.state.String(),
		Title:  r.review.QuizTitle,
	}
	if r.state == ReviewReady {
		snap.Index = r.index
		snap.Total = len(r.review.Records)
		snap.Record = reviewRecordView(r.review.Records[r.index], r.index)
		for i := range r.review.Records {
			snap.Records = append(snap.Records, *reviewRecordView(r.review.Records[i], i))
		}
	}
	return snap
}

// Option marks; mutually exclusive per option slot. A record has at most
// one correct and at most one selected option.
const (
	MarkCorrect   = "correct"
	MarkIncorrect = "incorrect"
	MarkNeutral   = "neutral"
)

// ReviewSnapshot is the serialized review view. Record is the entry at
// the current index; Records carries the full marked sequence.
type ReviewSnapshot struct {
	QuizID  int64              `json:"quiz_id"`
	State   string             `json:"state"`
	Title   string             `json:"quiz_title,omitempty"`
	Index   int                `json:"index"`
	Total   int                `json:"total"`
	Record  *ReviewRecordView  `json:"record,omitempty"`
	Records []ReviewRecordView `json:"records,omitempty"`
}

type ReviewRecordView struct {
	Number      int                `json:"number"`
	Question    string             `json:"question"`
	Options     []ReviewOptionView `json:"options"`
	Explanation string             `json:"explanation,omitempty"`
}

type ReviewOptionView struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Mark   string `json:"mark"`
}

func reviewRecordView(rec domain.ReviewRecord, index int) *ReviewRecordView {
	view := &ReviewRecordView{
		Number:      index + 1,
		Question:    rec.Question,
		Explanation: rec.Explanation,
	}
	for i, text := range rec.Options {
		if text == "" {
			continue
		}
		number := i + 1
		view.Options = append(view.Options, ReviewOptionView{
			Number: number,
			Text:   text,
			Mark:   markOption(rec, number),
		})
	}
	return view
}

func markOption(rec domain.ReviewRecord, number int) string {
	if number == rec.CorrectOption {
		return MarkCorrect
	}
	if rec.SelectedOption != nil && *rec.SelectedOption == number {
		return MarkIncorrect
	}
	return MarkNeutral
}
