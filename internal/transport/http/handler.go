package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"affairs-quiz-web/internal/app"
	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
)

// Handler exposes the web front-end flows over REST.
type Handler struct {
	svc    *app.Service
	guests *guest.Provider
	log    zerolog.Logger
}

func NewHandler(svc *app.Service, guests *guest.Provider, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, guests: guests, log: log}
}

// Routes builds the router. Every /api route runs behind the guest
// middleware, so identity resolution happens before any handler that
// needs it.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.guests.Middleware)

		r.Get("/quiz/{quizID}", h.getQuiz)
		r.Post("/quiz/{quizID}/session", h.startSession)
		r.Get("/quiz/{quizID}/session", h.sessionSnapshot)
		r.Post("/quiz/{quizID}/session/select", h.selectOption)
		r.Post("/quiz/{quizID}/session/next", h.next)
		r.Post("/quiz/{quizID}/session/prev", h.prev)
		r.Post("/quiz/{quizID}/session/submit", h.submit)
		r.Post("/quiz/{quizID}/session/restart", h.restart)
		r.Get("/quiz/{quizID}/review", h.review)

		r.Get("/today", h.today)
		r.Get("/recent", h.recent)

		r.Get("/discussion/featured", h.featuredDiscussion)
		r.Get("/discussion/recent", h.recentDiscussions)
		r.Get("/discussion/all", h.allDiscussions)
		r.Get("/discussion/{promptID}", h.discussion)
		r.Get("/discussion/{promptID}/thoughts", h.thoughts)

		r.Post("/discussion/{promptID}/thoughts", h.shareThought)
		r.Put("/discussion/{promptID}/thoughts/{thoughtID}", h.editThought)
		r.Post("/discussion/{promptID}/thoughts/{thoughtID}/delete", h.requestDelete)
		r.Post("/discussion/{promptID}/thoughts/{thoughtID}/delete/confirm", h.confirmDelete)
		r.Post("/discussion/{promptID}/thoughts/delete/cancel", h.cancelDelete)
	})

	return r
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := h.pathID(w, r, "quizID")
	if !ok {
		return
	}
	quiz, err := h.svc.Quiz(r.Context(), quizID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	quizID, ok := h.pathID(w, r, "quizID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	snap, err := h.svc.StartSession(r.Context(), quizID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) sessionSnapshot(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, func(quizID int64, id guest.Identity) (app.Snapshot, error) {
		return h.svc.SessionSnapshot(quizID, id)
	})
}

type selectRequest struct {
	QuestionID int64 `json:"question_id"`
	Option     int   `json:"option"`
}

func (h *Handler) selectOption(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.sessionOp(w, r, func(quizID int64, id guest.Identity) (app.Snapshot, error) {
		return h.svc.SelectOption(quizID, id, req.QuestionID, req.Option)
	})
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, func(quizID int64, id guest.Identity) (app.Snapshot, error) {
		return h.svc.Next(quizID, id)
	})
}

func (h *Handler) prev(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, func(quizID int64, id guest.Identity) (app.Snapshot, error) {
		return h.svc.Prev(quizID, id)
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, func(quizID int64, id guest.Identity) (app.Snapshot, error) {
		return h.svc.Submit(r.Context(), quizID, id)
	})
}

func (h *Handler) restart(w http.ResponseWriter, r *http.Request) {
	h.sessionOp(w, r, func(quizID int64, id guest.Identity) (app.Snapshot, error) {
		return h.svc.Restart(r.Context(), quizID, id)
	})
}

func (h *Handler) sessionOp(w http.ResponseWriter, r *http.Request, op func(int64, guest.Identity) (app.Snapshot, error)) {
	quizID, ok := h.pathID(w, r, "quizID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	snap, err := op(quizID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	quizID, ok := h.pathID(w, r, "quizID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	h.writeJSON(w, http.StatusOK, h.svc.Review(r.Context(), quizID, id))
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	id, _ := guest.FromContext(r.Context())
	listings, err := h.svc.Today(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	id, _ := guest.FromContext(r.Context())
	page, err := h.svc.Recent(r.Context(), id, pageParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) featuredDiscussion(w http.ResponseWriter, r *http.Request) {
	featured, err := h.svc.FeaturedDiscussion(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, featured)
}

func (h *Handler) recentDiscussions(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RecentDiscussions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) allDiscussions(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.AllDiscussions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) discussion(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	out, err := h.svc.Discussion(r.Context(), promptID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) thoughts(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	view, err := h.svc.Thoughts(r.Context(), promptID, pageParam(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

type thoughtRequest struct {
	Name string `json:"name"`
	Body string `json:"thought"`
}

func (h *Handler) shareThought(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	var req thoughtRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, _ := guest.FromContext(r.Context())
	created, err := h.svc.ShareThought(r.Context(), promptID, req.Name, req.Body, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) editThought(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	thoughtID, ok := h.pathID(w, r, "thoughtID")
	if !ok {
		return
	}
	var req thoughtRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, _ := guest.FromContext(r.Context())
	updated, err := h.svc.EditThought(r.Context(), promptID, thoughtID, req.Name, req.Body, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) requestDelete(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	thoughtID, ok := h.pathID(w, r, "thoughtID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	if err := h.svc.RequestDeleteThought(promptID, thoughtID, id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"pending_delete": thoughtID})
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	thoughtID, ok := h.pathID(w, r, "thoughtID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	if err := h.svc.ConfirmDeleteThought(r.Context(), promptID, thoughtID, id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": thoughtID})
}

func (h *Handler) cancelDelete(w http.ResponseWriter, r *http.Request) {
	promptID, ok := h.pathID(w, r, "promptID")
	if !ok {
		return
	}
	id, _ := guest.FromContext(r.Context())
	h.svc.CancelDeleteThought(promptID, id)
	h.writeJSON(w, http.StatusOK, map[string]any{"pending_delete": 0})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
		return 0, false
	}
	return id, true
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("write response")
	}
}

// writeError converts operation failures into user-facing notifications:
// nothing propagates as an uncaught fault.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrThoughtNotFound):
		h.writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, domain.ErrIdentityMissing):
		h.writeJSON(w, http.StatusUnauthorized, errorBody(err.Error()))
	case errors.Is(err, domain.ErrNotOwner):
		h.writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoPendingDelete),
		errors.Is(err, domain.ErrQuestionNotFound):
		h.writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, domain.ErrInvalidThought):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		h.log.Warn().Err(err).Msg("upstream request failed")
		h.writeJSON(w, http.StatusBadGateway, errorBody("content not available"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
