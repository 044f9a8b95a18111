package app

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
)

// BoardLimits are the configurable length bounds for thought submissions.
// They are deployment knobs, not domain invariants.
type BoardLimits struct {
	MaxName     int
	MinThought  int
	MaxThought  int
	PreviewSize int
}

var validate = validator.New()

// Validate checks a thought payload against the bounds. Display name is
// optional; body is required. Violations are rejected here and never
// reach the platform API.
func (l BoardLimits) Validate(name, body string) error {
	if err := validate.Var(name, fmt.Sprintf("omitempty,max=%d", l.MaxName)); err != nil {
		return fmt.Errorf("%w: name cannot exceed %d characters", domain.ErrInvalidThought, l.MaxName)
	}
	if err := validate.Var(body, fmt.Sprintf("required,min=%d,max=%d", l.MinThought, l.MaxThought)); err != nil {
		return fmt.Errorf("%w: thought must be between %d and %d characters", domain.ErrInvalidThought, l.MinThought, l.MaxThought)
	}
	return nil
}

// Board is the merged view of a discussion's thoughts: an ordered
// collection de-duplicated by id. Merging is a pure insert-or-update;
// first-seen order is preserved and a re-fetched id keeps its position
// while taking the latest value. Destructive deletes are two-phase: a
// request marks a pending target and a separate confirmation fires it.
// A board is shared by every request for its (guest, prompt) pair, so
// all access goes through the mutex.
type Board struct {
	mu            sync.Mutex
	order         []int64
	items         map[int64]domain.Thought
	pendingDelete int64
}

func NewBoard() *Board {
	return &Board{items: make(map[int64]domain.Thought)}
}

// MergePage folds one fetched page into the board. Idempotent: merging
// the same page twice yields the same collection.
func (b *Board) MergePage(page []domain.Thought) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range page {
		if _, ok := b.items[t.ID]; ok {
			b.items[t.ID] = t
			continue
		}
		b.items[t.ID] = t
		b.order = append(b.order, t.ID)
	}
}

// Prepend puts a newly created thought first, regardless of its
// created_at relative to the existing page. An id already held only has
// its value updated.
func (b *Board) Prepend(t domain.Thought) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[t.ID]; ok {
		b.items[t.ID] = t
		return
	}
	b.items[t.ID] = t
	b.order = append([]int64{t.ID}, b.order...)
}

// Update replaces the held value after a confirmed edit. The position is
// untouched.
func (b *Board) Update(t domain.Thought) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[t.ID]; !ok {
		return domain.ErrThoughtNotFound
	}
	b.items[t.ID] = t
	return nil
}

// Get returns a held thought by id.
func (b *Board) Get(id int64) (domain.Thought, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.items[id]
	return t, ok
}

// CanEdit reports whether the requesting identity owns the thought. The
// server stays the actual authority and may still reject.
func (b *Board) CanEdit(id int64, requester guest.Identity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.items[id]
	return ok && requester.Valid() && t.GuestID == requester.String()
}

// RequestDelete starts the two-phase delete by marking the pending
// target. It replaces any previous pending target.
func (b *Board) RequestDelete(id int64, requester guest.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.items[id]
	if !ok {
		return domain.ErrThoughtNotFound
	}
	if !requester.Valid() || t.GuestID != requester.String() {
		return domain.ErrNotOwner
	}
	b.pendingDelete = id
	return nil
}

// ConfirmDelete consumes the pending target, allowing the destructive
// call to proceed. Confirming a different id than the one requested
// fails.
func (b *Board) ConfirmDelete(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingDelete == 0 || b.pendingDelete != id {
		return domain.ErrNoPendingDelete
	}
	b.pendingDelete = 0
	return nil
}

// CancelDelete clears the pending target without deleting.
func (b *Board) CancelDelete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingDelete = 0
}

// PendingDelete returns the id awaiting confirmation, zero when none.
func (b *Board) PendingDelete() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingDelete
}

// Remove drops a thought after the server confirmed deletion.
func (b *Board) Remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return
	}
	delete(b.items, id)
	for i, held := range b.order {
		if held == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	if b.pendingDelete == id {
		b.pendingDelete = 0
	}
}

// List returns the thoughts in board order.
func (b *Board) List() []domain.Thought {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Thought, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.items[id])
	}
	return out
}

// Len returns the number of unique thoughts held.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}
