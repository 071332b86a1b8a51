package services

import "github.com/atlasnotes/post-service/internal/core/domain"

// Action est une opération soumise au contrôle de propriété.
// Lecture et création ne passent pas par ici : être authentifié suffit.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Authorize est une fonction pure : autorisé ssi requesterID est le
// propriétaire. Aucun rôle, aucun passe-droit admin.
func Authorize(_ Action, ownerID, requesterID string) error {
	if ownerID != requesterID {
		return domain.ErrForbidden
	}
	return nil
}
