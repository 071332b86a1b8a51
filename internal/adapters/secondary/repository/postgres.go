package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

// querier est satisfait par *pgxpool.Pool et par pgx.Tx : les mêmes requêtes
// tournent hors ou dans une transaction sans dupliquer le code.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// sqlPost est le DTO tampon entre la base et le domaine.
type sqlPost struct {
	ID        string
	Title     string
	Body      string
	Status    int16
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PostRepo struct {
	db querier
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{db: pool}
}

var _ ports.PostRepository = (*PostRepo)(nil)

// List renvoie tous les posts, filtrés par statut si demandé, avec leurs
// catégories et l'auteur restreint à ses quatre champs exposables.
func (r *PostRepo) List(ctx context.Context, status *domain.Status) ([]*domain.Post, error) {
	q := `
		SELECT p.id, p.title, p.body, p.status, p.user_id, p.created_at, p.updated_at,
		       u.id, u.login_id, u.name, u.icon_url
		FROM posts p
		JOIN users u ON u.id = p.user_id
	`
	args := []any{}
	if status != nil {
		q += ` WHERE p.status = $1`
		args = append(args, int16(*status))
	}
	q += ` ORDER BY p.created_at DESC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: list posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		var sp sqlPost
		var author domain.Author
		if err := rows.Scan(
			&sp.ID, &sp.Title, &sp.Body, &sp.Status, &sp.UserID, &sp.CreatedAt, &sp.UpdatedAt,
			&author.ID, &author.LoginID, &author.Name, &author.IconURL,
		); err != nil {
			return nil, fmt.Errorf("db: scan post: %w", err)
		}
		post := toDomain(&sp)
		post.Author = &author
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: list posts: %w", err)
	}

	if err := attachCategories(ctx, r.db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepo) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	q := `SELECT id, title, body, status, user_id, created_at, updated_at FROM posts WHERE id = $1`

	var sp sqlPost
	err := r.db.QueryRow(ctx, q, postID).Scan(
		&sp.ID, &sp.Title, &sp.Body, &sp.Status, &sp.UserID, &sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("db: find post: %w", err)
	}

	post := toDomain(&sp)
	if err := attachCategories(ctx, r.db, []*domain.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostRepo) Insert(ctx context.Context, post *domain.Post) error {
	q := `
		INSERT INTO posts (id, title, body, status, user_id, created_at, updated_at)
		VALUES (@id, @title, @body, @status, @user_id, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":         post.ID,
		"title":      post.Title,
		"body":       post.Body,
		"status":     int16(post.Status),
		"user_id":    post.UserID,
		"created_at": post.CreatedAt,
		"updated_at": post.UpdatedAt,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("db: insert post: %w", err)
	}
	return nil
}

// Update réécrit les trois champs scalaires, même inchangés.
func (r *PostRepo) Update(ctx context.Context, post *domain.Post) error {
	q := `
		UPDATE posts
		SET title = @title, body = @body, status = @status, updated_at = @updated_at
		WHERE id = @id
	`
	args := pgx.NamedArgs{
		"id":         post.ID,
		"title":      post.Title,
		"body":       post.Body,
		"status":     int16(post.Status),
		"updated_at": post.UpdatedAt,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("db: update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// Delete supprime définitivement la ligne ; les liaisons tombent via
// ON DELETE CASCADE, aucune ligne de jointure orpheline ne survit.
func (r *PostRepo) Delete(ctx context.Context, postID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return fmt.Errorf("db: delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// --- HELPERS ---

func toDomain(sp *sqlPost) *domain.Post {
	return &domain.Post{
		ID:         sp.ID,
		Title:      sp.Title,
		Body:       sp.Body,
		Status:     domain.Status(sp.Status),
		UserID:     sp.UserID,
		Categories: []domain.Category{},
		CreatedAt:  sp.CreatedAt,
		UpdatedAt:  sp.UpdatedAt,
	}
}

// attachCategories charge les catégories de tous les posts en une requête
// (WHERE post_id = ANY) et les raccroche en mémoire.
func attachCategories(ctx context.Context, db querier, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, len(posts))
	byID := make(map[string]*domain.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	q := `
		SELECT pc.post_id, c.id, c.label
		FROM post_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.post_id = ANY($1)
		ORDER BY c.id
	`
	rows, err := db.Query(ctx, q, ids)
	if err != nil {
		return fmt.Errorf("db: load categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID string
		var cat domain.Category
		if err := rows.Scan(&postID, &cat.ID, &cat.Label); err != nil {
			return fmt.Errorf("db: scan category: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Categories = append(p.Categories, cat)
		}
	}
	return rows.Err()
}
