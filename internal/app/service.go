package app

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory,
// Redis-backed, etc). Sessions are keyed per (quiz, guest) pair.
type SessionRepository interface {
	GetOrCreate(quizID int64, id guest.Identity, create func() *Session) (*Session, bool)
	Get(quizID int64, id guest.Identity) (*Session, bool)
	Delete(quizID int64, id guest.Identity)
}

// PlatformAPI is the consumed contract of the remote platform: scoring,
// review, listings, discussion content, and thought CRUD all live behind
// it. The gateway client satisfies this interface.
type PlatformAPI interface {
	Submitter
	ReviewSource
	TodayQuizzes(ctx context.Context, id guest.Identity) ([]domain.QuizListing, error)
	RecentQuizzes(ctx context.Context, id guest.Identity, page int) (domain.QuizListingPage, error)
	FeaturedDiscussion(ctx context.Context) (*domain.Discussion, error)
	RecentDiscussions(ctx context.Context) ([]domain.Discussion, error)
	AllDiscussions(ctx context.Context) ([]domain.Discussion, error)
	DiscussionByID(ctx context.Context, id int64) (domain.Discussion, error)
	ListThoughts(ctx context.Context, promptID int64, page int) (domain.ThoughtPage, error)
	CreateThought(ctx context.Context, payload domain.ThoughtDraft) (domain.Thought, error)
	EditThought(ctx context.Context, thoughtID int64, payload domain.ThoughtDraft) (domain.Thought, error)
	DeleteThought(ctx context.Context, thoughtID int64, id guest.Identity) error
}

// Service hosts the front-end flows: quiz sessions, review, listings,
// discussions, and per-guest thought boards.
type Service struct {
	sessions     SessionRepository
	quizzes      QuizSource
	api          PlatformAPI
	limits       BoardLimits
	tickInterval time.Duration

	mu     sync.Mutex
	boards map[string]*Board
}

func NewService(sessions SessionRepository, quizzes QuizSource, api PlatformAPI, limits BoardLimits) *Service {
	return NewServiceWithInterval(sessions, quizzes, api, limits, time.Second)
}

// NewServiceWithInterval is a test hook controlling the countdown tick.
func NewServiceWithInterval(sessions SessionRepository, quizzes QuizSource, api PlatformAPI, limits BoardLimits, interval time.Duration) *Service {
	return &Service{
		sessions:     sessions,
		quizzes:      quizzes,
		api:          api,
		limits:       limits,
		tickInterval: interval,
		boards:       make(map[string]*Board),
	}
}

// Limits exposes the configured board bounds.
func (s *Service) Limits() BoardLimits { return s.limits }

// Quiz fetches quiz content through the configured source.
func (s *Service) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// StartSession creates (or resumes) the guest's session for a quiz and
// initializes it. Identity must resolve before any session exists.
func (s *Service) StartSession(ctx context.Context, quizID int64, id guest.Identity) (Snapshot, error) {
	if !id.Valid() {
		return Snapshot{}, domain.ErrIdentityMissing
	}
	session, created := s.sessions.GetOrCreate(quizID, id, func() *Session {
		return NewSessionWithInterval(quizID, id, s.quizzes, s.api, s.tickInterval)
	})
	if created {
		return session.Initialize(ctx), nil
	}
	return session.Snapshot(), nil
}

// Session returns the live session for (quiz, guest), for transports that
// subscribe to its snapshot feed.
func (s *Service) Session(quizID int64, id guest.Identity) (*Session, error) {
	session, ok := s.sessions.Get(quizID, id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) SessionSnapshot(quizID int64, id guest.Identity) (Snapshot, error) {
	session, err := s.Session(quizID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *Service) SelectOption(quizID int64, id guest.Identity, questionID int64, option int) (Snapshot, error) {
	session, err := s.Session(quizID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.SelectOption(questionID, option)
}

func (s *Service) Next(quizID int64, id guest.Identity) (Snapshot, error) {
	session, err := s.Session(quizID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Next()
}

func (s *Service) Prev(quizID int64, id guest.Identity) (Snapshot, error) {
	session, err := s.Session(quizID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Prev()
}

func (s *Service) Submit(ctx context.Context, quizID int64, id guest.Identity) (Snapshot, error) {
	session, err := s.Session(quizID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Submit(ctx)
}

func (s *Service) Restart(ctx context.Context, quizID int64, id guest.Identity) (Snapshot, error) {
	session, err := s.Session(quizID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Restart(ctx)
}

// Review runs a review session for the guest's past submission. The
// fetch only fires once identity has resolved.
func (s *Service) Review(ctx context.Context, quizID int64, id guest.Identity) ReviewSnapshot {
	return NewReviewSession(s.api, quizID).Load(ctx, id)
}

func (s *Service) Today(ctx context.Context, id guest.Identity) ([]domain.QuizListing, error) {
	if !id.Valid() {
		return nil, domain.ErrIdentityMissing
	}
	return s.api.TodayQuizzes(ctx, id)
}

func (s *Service) Recent(ctx context.Context, id guest.Identity, page int) (domain.QuizListingPage, error) {
	if !id.Valid() {
		return domain.QuizListingPage{}, domain.ErrIdentityMissing
	}
	return s.api.RecentQuizzes(ctx, id, page)
}

func (s *Service) FeaturedDiscussion(ctx context.Context) (*domain.Discussion, error) {
	return s.api.FeaturedDiscussion(ctx)
}

func (s *Service) RecentDiscussions(ctx context.Context) ([]domain.Discussion, error) {
	return s.api.RecentDiscussions(ctx)
}

func (s *Service) AllDiscussions(ctx context.Context) ([]domain.Discussion, error) {
	return s.api.AllDiscussions(ctx)
}

func (s *Service) Discussion(ctx context.Context, id int64) (domain.Discussion, error) {
	return s.api.DiscussionByID(ctx, id)
}

// board returns the guest's merged view of one discussion's thoughts.
func (s *Service) board(promptID int64, id guest.Identity) *Board {
	key := fmt.Sprintf("%s|%d", id, promptID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[key]; ok {
		return b
	}
	b := NewBoard()
	s.boards[key] = b
	return b
}

// Thoughts fetches one page and folds it into the guest's board.
func (s *Service) Thoughts(ctx context.Context, promptID int64, page int, id guest.Identity) (BoardView, error) {
	board := s.board(promptID, id)
	fetched, err := s.api.ListThoughts(ctx, promptID, page)
	if err != nil {
		return BoardView{}, err
	}
	board.MergePage(fetched.Results)
	return s.boardView(promptID, board, id, fetched.Count, fetched.Next != ""), nil
}

// ShareThought validates and creates a thought, then prepends it to the
// guest's board view regardless of its timestamp.
func (s *Service) ShareThought(ctx context.Context, promptID int64, name, body string, id guest.Identity) (domain.Thought, error) {
	if !id.Valid() {
		return domain.Thought{}, domain.ErrIdentityMissing
	}
	if err := s.limits.Validate(name, body); err != nil {
		return domain.Thought{}, err
	}
	created, err := s.api.CreateThought(ctx, domain.ThoughtDraft{
		PromptID: promptID,
		Name:     name,
		Body:     body,
		GuestID:  id.String(),
	})
	if err != nil {
		return domain.Thought{}, err
	}
	s.board(promptID, id).Prepend(created)
	return created, nil
}

// EditThought updates a guest-owned thought. The local board changes only
// after the server confirms.
func (s *Service) EditThought(ctx context.Context, promptID, thoughtID int64, name, body string, id guest.Identity) (domain.Thought, error) {
	if !id.Valid() {
		return domain.Thought{}, domain.ErrIdentityMissing
	}
	if err := s.limits.Validate(name, body); err != nil {
		return domain.Thought{}, err
	}
	board := s.board(promptID, id)
	if _, ok := board.Get(thoughtID); !ok {
		return domain.Thought{}, domain.ErrThoughtNotFound
	}
	if !board.CanEdit(thoughtID, id) {
		return domain.Thought{}, domain.ErrNotOwner
	}
	updated, err := s.api.EditThought(ctx, thoughtID, domain.ThoughtDraft{
		PromptID: promptID,
		Name:     name,
		Body:     body,
		GuestID:  id.String(),
	})
	if err != nil {
		return domain.Thought{}, err
	}
	if err := board.Update(updated); err != nil {
		return domain.Thought{}, err
	}
	return updated, nil
}

// RequestDeleteThought marks the pending delete target; nothing is
// deleted until a separate confirmation.
func (s *Service) RequestDeleteThought(promptID, thoughtID int64, id guest.Identity) error {
	if !id.Valid() {
		return domain.ErrIdentityMissing
	}
	return s.board(promptID, id).RequestDelete(thoughtID, id)
}

// ConfirmDeleteThought fires the destructive call for the pending target.
// The board drops the record only after the server confirms.
func (s *Service) ConfirmDeleteThought(ctx context.Context, promptID, thoughtID int64, id guest.Identity) error {
	if !id.Valid() {
		return domain.ErrIdentityMissing
	}
	board := s.board(promptID, id)
	if board.PendingDelete() != thoughtID {
		return domain.ErrNoPendingDelete
	}
	if err := s.api.DeleteThought(ctx, thoughtID, id); err != nil {
		return err
	}
	_ = board.ConfirmDelete(thoughtID)
	board.Remove(thoughtID)
	return nil
}

// CancelDeleteThought clears the pending target.
func (s *Service) CancelDeleteThought(promptID int64, id guest.Identity) {
	s.board(promptID, id).CancelDelete()
}

// BoardView is the serialized thought list for one guest and prompt.
type BoardView struct {
	PromptID      int64         `json:"prompt"`
	Count         int           `json:"count"`
	HasMore       bool          `json:"has_more"`
	PendingDelete int64         `json:"pending_delete,omitempty"`
	Thoughts      []ThoughtView `json:"results"`
}

// ThoughtView decorates a thought with per-guest affordances.
type ThoughtView struct {
	domain.Thought
	Mine      bool   `json:"mine"`
	Preview   string `json:"preview,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (s *Service) boardView(promptID int64, board *Board, id guest.Identity, count int, hasMore bool) BoardView {
	view := BoardView{
		PromptID:      promptID,
		Count:         count,
		HasMore:       hasMore,
		PendingDelete: board.PendingDelete(),
	}
	for _, t := range board.List() {
		tv := ThoughtView{Thought: t, Mine: board.CanEdit(t.ID, id)}
		tv.Preview, tv.Truncated = truncatePreview(t.Body, s.limits.PreviewSize)
		view.Thoughts = append(view.Thoughts, tv)
	}
	return view
}

// truncatePreview cuts the body to at most size bytes without splitting
// a multi-byte rune. Bodies within the size pass through untruncated
// with an empty preview.
func truncatePreview(body string, size int) (string, bool) {
	if size <= 0 || len(body) <= size {
		return "", false
	}
	cut := size
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut], true
}
