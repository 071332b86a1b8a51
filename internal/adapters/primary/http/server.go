package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

type Server struct {
	service ports.PostService
}

func NewServer(service ports.PostService) *Server {
	return &Server{service: service}
}

// Routes monte les handlers. Toutes les routes posts passent par le
// middleware d'authentification ; /healthz reste public.
func (s *Server) Routes(validator TokenValidator) http.Handler {
	posts := http.NewServeMux()
	posts.HandleFunc("GET /posts", s.handleList)
	posts.HandleFunc("POST /posts", s.handleCreate)
	posts.HandleFunc("GET /posts/{id}", s.handleGet)
	posts.HandleFunc("PATCH /posts/{id}", s.handleUpdate)
	posts.HandleFunc("DELETE /posts/{id}", s.handleDelete)

	authed := AuthMiddleware(validator)(posts)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/posts", authed)
	mux.Handle("/posts/", authed)
	return mux
}

// --- DTO (mapping Domain <-> JSON) ---

type authorJSON struct {
	ID      string `json:"id"`
	LoginID string `json:"loginId"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type categoryJSON struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

type postJSON struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Status     int16          `json:"status"`
	UserID     string         `json:"userId"`
	Categories []categoryJSON `json:"categories"`
	User       *authorJSON    `json:"user,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Enveloppe d'entrée : { "post": { title, body, status, categoryIds? } }
type postPayload struct {
	Title       *string  `json:"title"`
	Body        *string  `json:"body"`
	Status      *int16   `json:"status"`
	CategoryIDs *[]int64 `json:"categoryIds"`
}

type postEnvelope struct {
	Post *postPayload `json:"post"`
}

func toJSON(p *domain.Post) *postJSON {
	out := &postJSON{
		ID:         p.ID,
		Title:      p.Title,
		Body:       p.Body,
		Status:     int16(p.Status),
		UserID:     p.UserID,
		Categories: make([]categoryJSON, len(p.Categories)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for i, c := range p.Categories {
		out.Categories[i] = categoryJSON{ID: c.ID, Label: c.Label}
	}
	if p.Author != nil {
		// Projection stricte : jamais d'autre champ utilisateur que ces quatre-là.
		out.User = &authorJSON{ID: p.Author.ID, LoginID: p.Author.LoginID, Name: p.Author.Name, IconURL: p.Author.IconURL}
	}
	return out
}

// --- HANDLERS ---

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var status *domain.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			writeError(w, http.StatusBadRequest, "status must be an integer")
			return
		}
		st := domain.Status(n)
		status = &st
	}

	posts, err := s.service.ListPosts(r.Context(), status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]*postJSON, len(posts))
	for i, p := range posts {
		out[i] = toJSON(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	post, err := s.service.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toJSON(post)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	cmd := ports.CreatePostCmd{
		Title:  *payload.Title,
		Body:   *payload.Body,
		Status: domain.Status(*payload.Status),
		UserID: UserFromContext(r.Context()),
	}
	if payload.CategoryIDs != nil {
		cmd.CategoryIDs = *payload.CategoryIDs
	}

	post, err := s.service.CreatePost(r.Context(), cmd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": toJSON(post)})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	cmd := ports.UpdatePostCmd{
		PostID:      r.PathValue("id"),
		RequesterID: UserFromContext(r.Context()),
		Title:       *payload.Title,
		Body:        *payload.Body,
		Status:      domain.Status(*payload.Status),
		CategoryIDs: payload.CategoryIDs,
	}

	post, err := s.service.UpdatePost(r.Context(), cmd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toJSON(post)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	deletedID, err := s.service.DeletePost(r.Context(), r.PathValue("id"), UserFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deletedId": deletedID})
}

// --- HELPERS ---

// decodePayload valide la forme avant de construire la commande :
// un body difforme est rejeté ici, jamais au fond de la persistance.
func decodePayload(w http.ResponseWriter, r *http.Request) (*postPayload, bool) {
	var env postEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Post == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"post\": {...}}")
		return nil, false
	}
	p := env.Post
	if p.Title == nil || p.Body == nil || p.Status == nil {
		writeError(w, http.StatusBadRequest, "title, body and status are required")
		return nil, false
	}
	if !domain.Status(*p.Status).Valid() {
		writeError(w, http.StatusBadRequest, "unknown status value")
		return nil, false
	}
	return p, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "you are not allowed to modify this post")
	case errors.Is(err, domain.ErrMissingOwner),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidBody),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Défaillance de stockage : détail en log, jamais dans la réponse.
		slog.Error("storage failure", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
