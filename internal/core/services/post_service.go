package services

import (
	"context"
	"log/slog"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

type service struct {
	repo      ports.PostRepository
	tx        ports.TxManager
	cache     ports.PostCache
	publisher ports.EventPublisher
}

func NewPostService(repo ports.PostRepository, tx ports.TxManager, cache ports.PostCache, pub ports.EventPublisher) ports.PostService {
	return &service{repo: repo, tx: tx, cache: cache, publisher: pub}
}

func (s *service) ListPosts(ctx context.Context, status *domain.Status) ([]*domain.Post, error) {
	return s.repo.List(ctx, status)
}

func (s *service) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	// Lecture cache d'abord ; un raté de cache n'est jamais bloquant.
	if cached, err := s.cache.Get(ctx, postID); err == nil && cached != nil {
		return cached, nil
	}

	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, post); err != nil {
		slog.Warn("cache set failed", "post_id", postID, "error", err)
	}
	return post, nil
}

func (s *service) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (*domain.Post, error) {
	post, err := domain.NewPost(cmd.Title, cmd.Body, cmd.Status, cmd.UserID)
	if err != nil {
		return nil, err
	}
	categoryIDs := dedupe(cmd.CategoryIDs)

	// Unité de travail : insertion, liaisons, relecture de confirmation.
	// La moindre erreur annule le tout ; aucun post partiel n'est visible.
	var created *domain.Post
	err = s.tx.WithinTx(ctx, func(uow ports.UnitOfWork) error {
		if err := uow.Posts().Insert(ctx, post); err != nil {
			return err
		}
		if len(categoryIDs) > 0 {
			if err := uow.Categories().SetCategories(ctx, post.ID, categoryIDs); err != nil {
				return err
			}
		}
		created, err = uow.Posts().FindByID(ctx, post.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Best effort : la donnée est commitée, on ne fait pas échouer la requête.
	if err := s.publisher.PublishPostCreated(ctx, created); err != nil {
		slog.Warn("publish post.created failed", "post_id", created.ID, "error", err)
	}
	return created, nil
}

func (s *service) UpdatePost(ctx context.Context, cmd ports.UpdatePostCmd) (*domain.Post, error) {
	post, err := s.repo.FindByID(ctx, cmd.PostID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(ActionUpdate, post.UserID, cmd.RequesterID); err != nil {
		return nil, err
	}
	if err := post.Rewrite(cmd.Title, cmd.Body, cmd.Status); err != nil {
		return nil, err
	}

	if cmd.CategoryIDs == nil {
		// Champs scalaires seuls : une seule instruction, atomique côté store.
		if err := s.repo.Update(ctx, post); err != nil {
			return nil, err
		}
	} else {
		// Scalaires + remplacement complet des liaisons : une seule unité.
		categoryIDs := dedupe(*cmd.CategoryIDs)
		err = s.tx.WithinTx(ctx, func(uow ports.UnitOfWork) error {
			if err := uow.Posts().Update(ctx, post); err != nil {
				return err
			}
			if err := uow.Categories().SetCategories(ctx, post.ID, categoryIDs); err != nil {
				return err
			}
			post, err = uow.Posts().FindByID(ctx, post.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.cache.Invalidate(ctx, post.ID); err != nil {
		slog.Warn("cache invalidate failed", "post_id", post.ID, "error", err)
	}
	if err := s.publisher.PublishPostUpdated(ctx, post); err != nil {
		slog.Warn("publish post.updated failed", "post_id", post.ID, "error", err)
	}
	return post, nil
}

func (s *service) DeletePost(ctx context.Context, postID, requesterID string) (string, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return "", err
	}
	if err := Authorize(ActionDelete, post.UserID, requesterID); err != nil {
		return "", err
	}

	// Suppression dure ; les lignes de jointure tombent en cascade.
	if err := s.repo.Delete(ctx, postID); err != nil {
		return "", err
	}

	if err := s.cache.Invalidate(ctx, postID); err != nil {
		slog.Warn("cache invalidate failed", "post_id", postID, "error", err)
	}
	if err := s.publisher.PublishPostDeleted(ctx, postID); err != nil {
		slog.Warn("publish post.deleted failed", "post_id", postID, "error", err)
	}
	return postID, nil
}

// dedupe écrase les doublons en conservant l'ordre d'arrivée.
func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return ids
	}
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
