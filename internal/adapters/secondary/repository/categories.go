package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

// CategoryLinker gère la jointure post/catégorie. Il n'écrit jamais dans
// posts ni dans categories : les catégories préexistent, on ne fait que lier.
type CategoryLinker struct {
	db querier
}

var _ ports.CategoryLinker = (*CategoryLinker)(nil)

// SetCategories remplace l'ensemble complet des liaisons du post par
// exactement categoryIDs. Vide = tout retirer ; les doublons s'écrasent.
func (l *CategoryLinker) SetCategories(ctx context.Context, postID string, categoryIDs []int64) error {
	if _, err := l.db.Exec(ctx, `DELETE FROM post_categories WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("db: clear category links: %w", err)
	}
	categoryIDs = collapse(categoryIDs)
	if len(categoryIDs) == 0 {
		return nil
	}

	q := `
		INSERT INTO post_categories (post_id, category_id)
		SELECT $1, unnest($2::bigint[])
	`
	if _, err := l.db.Exec(ctx, q, postID, categoryIDs); err != nil {
		return handleLinkError(err)
	}
	return nil
}

func collapse(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// handleLinkError traduit les codes d'erreur PostgreSQL en erreurs du domaine.
func handleLinkError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23503 = Foreign Key Violation : id de catégorie inconnu
		if pgErr.Code == "23503" {
			return domain.ErrUnknownCategory
		}
	}
	return fmt.Errorf("db: set category links: %w", err)
}
