package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- ERREURS DU DOMAINE ---

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrForbidden       = errors.New("forbidden: not the owner")
	ErrMissingOwner    = errors.New("missing owner id")
	ErrInvalidTitle    = errors.New("title is required")
	ErrInvalidBody     = errors.New("body is required")
	ErrInvalidStatus   = errors.New("unknown status value")
	ErrUnknownCategory = errors.New("unknown category id")
)

// --- STATUT DE PUBLICATION ---

type Status int16

const (
	StatusDraft     Status = 0
	StatusPublished Status = 1
	StatusArchived  Status = 2
)

func (s Status) Valid() bool {
	return s >= StatusDraft && s <= StatusArchived
}

// --- ENTITÉS ---

// Author est la projection publique d'un utilisateur.
// Invariant : aucun autre champ (token, credentials...) ne doit jamais y figurer.
type Author struct {
	ID      string
	LoginID string
	Name    string
	IconURL string
}

type Category struct {
	ID    int64
	Label string
}

type Post struct {
	ID         string
	Title      string
	Body       string
	Status     Status
	UserID     string // propriétaire, fixé à la création, jamais réassigné
	Categories []Category
	Author     *Author // renseigné uniquement sur les lectures avec jointure
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// --- FACTORY ---

// NewPost valide les invariants et génère l'identité.
// Seul moyen de créer un post proprement.
func NewPost(title, body string, status Status, userID string) (*Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingOwner
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidTitle
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrInvalidBody
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := time.Now().UTC()
	return &Post{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Status:    status,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// --- COMPORTEMENTS ---

// Rewrite remplace les trois champs scalaires, même à l'identique.
func (p *Post) Rewrite(title, body string, status Status) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidTitle
	}
	if strings.TrimSpace(body) == "" {
		return ErrInvalidBody
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}
	p.Title = title
	p.Body = body
	p.Status = status
	p.touch()
	return nil
}

// OwnedBy indique si userID est le propriétaire du post.
func (p *Post) OwnedBy(userID string) bool {
	return p.UserID == userID
}

func (p *Post) touch() {
	p.UpdatedAt = time.Now().UTC()
}
