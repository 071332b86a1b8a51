package ports

import (
	"context"

	"github.com/atlasnotes/post-service/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---
// Des structs plutôt que des listes d'arguments : on peut ajouter des champs
// optionnels sans casser la signature.

type CreatePostCmd struct {
	Title       string
	Body        string
	Status      domain.Status
	UserID      string // identité authentifiée, fournie par le middleware
	CategoryIDs []int64
}

type UpdatePostCmd struct {
	PostID      string
	RequesterID string
	Title       string
	Body        string
	Status      domain.Status
	// nil = ne pas toucher aux associations ; vide = tout retirer.
	CategoryIDs *[]int64
}

// --- PORT PRIMAIRE (Driving) ---

type PostService interface {
	ListPosts(ctx context.Context, status *domain.Status) ([]*domain.Post, error)
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	CreatePost(ctx context.Context, cmd CreatePostCmd) (*domain.Post, error)
	UpdatePost(ctx context.Context, cmd UpdatePostCmd) (*domain.Post, error)
	DeletePost(ctx context.Context, postID, requesterID string) (string, error)
}
