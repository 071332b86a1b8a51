package ports

import (
	"context"

	"github.com/atlasnotes/post-service/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

// PostRepository est le seul écrivain des lignes posts.
type PostRepository interface {
	List(ctx context.Context, status *domain.Status) ([]*domain.Post, error)
	FindByID(ctx context.Context, postID string) (*domain.Post, error)
	Insert(ctx context.Context, post *domain.Post) error
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, postID string) error
}

// CategoryLinker est le seul écrivain des lignes de jointure post/catégorie.
// SetCategories remplace l'ensemble complet (pas de diff incrémental) ;
// un id de catégorie inconnu vaut domain.ErrUnknownCategory.
type CategoryLinker interface {
	SetCategories(ctx context.Context, postID string, categoryIDs []int64) error
}

// UnitOfWork regroupe les dépôts liés à une même transaction :
// tout commit ou tout rollback, jamais d'état partiel.
type UnitOfWork interface {
	Posts() PostRepository
	Categories() CategoryLinker
}

// TxManager ouvre une unité de travail. Si fn retourne une erreur, la
// transaction est annulée avant que l'erreur ne remonte.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// --- CACHE ---

// PostCache est un cache de lecture best-effort : un échec de cache ne doit
// jamais faire échouer l'opération.
type PostCache interface {
	Get(ctx context.Context, postID string) (*domain.Post, error)
	Set(ctx context.Context, post *domain.Post) error
	Invalidate(ctx context.Context, postID string) error
}

// --- MESSAGERIE (BROKER) ---

type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	PublishPostUpdated(ctx context.Context, post *domain.Post) error
	PublishPostDeleted(ctx context.Context, postID string) error
}
