package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

// DTO cache : des tags JSON ici pour ne pas polluer le domaine.
type cachedAuthor struct {
	ID      string `json:"id"`
	LoginID string `json:"loginId"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type cachedCategory struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

type cachedPost struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Status     int16            `json:"status"`
	UserID     string           `json:"userId"`
	Categories []cachedCategory `json:"categories"`
	Author     *cachedAuthor    `json:"author,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type RedisPostCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPostCache(client *redis.Client, ttl time.Duration) *RedisPostCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPostCache{client: client, ttl: ttl}
}

var _ ports.PostCache = (*RedisPostCache)(nil)

func key(postID string) string {
	return fmt.Sprintf("post:%s", postID)
}

// Get renvoie (nil, nil) sur cache miss.
func (c *RedisPostCache) Get(ctx context.Context, postID string) (*domain.Post, error) {
	raw, err := c.client.Get(ctx, key(postID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: get: %w", err)
	}

	var cp cachedPost
	if err := json.Unmarshal(raw, &cp); err != nil {
		// Entrée corrompue : on la traite comme un miss.
		return nil, nil
	}
	return cp.toDomain(), nil
}

func (c *RedisPostCache) Set(ctx context.Context, post *domain.Post) error {
	data, err := json.Marshal(fromDomain(post))
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	if err := c.client.Set(ctx, key(post.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

func (c *RedisPostCache) Invalidate(ctx context.Context, postID string) error {
	if err := c.client.Del(ctx, key(postID)).Err(); err != nil {
		return fmt.Errorf("cache: del: %w", err)
	}
	return nil
}

// --- MAPPING ---

func fromDomain(p *domain.Post) *cachedPost {
	cp := &cachedPost{
		ID:         p.ID,
		Title:      p.Title,
		Body:       p.Body,
		Status:     int16(p.Status),
		UserID:     p.UserID,
		Categories: make([]cachedCategory, len(p.Categories)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for i, cat := range p.Categories {
		cp.Categories[i] = cachedCategory{ID: cat.ID, Label: cat.Label}
	}
	if p.Author != nil {
		cp.Author = &cachedAuthor{ID: p.Author.ID, LoginID: p.Author.LoginID, Name: p.Author.Name, IconURL: p.Author.IconURL}
	}
	return cp
}

func (cp *cachedPost) toDomain() *domain.Post {
	p := &domain.Post{
		ID:         cp.ID,
		Title:      cp.Title,
		Body:       cp.Body,
		Status:     domain.Status(cp.Status),
		UserID:     cp.UserID,
		Categories: make([]domain.Category, len(cp.Categories)),
		CreatedAt:  cp.CreatedAt,
		UpdatedAt:  cp.UpdatedAt,
	}
	for i, cat := range cp.Categories {
		p.Categories[i] = domain.Category{ID: cat.ID, Label: cat.Label}
	}
	if cp.Author != nil {
		p.Author = &domain.Author{ID: cp.Author.ID, LoginID: cp.Author.LoginID, Name: cp.Author.Name, IconURL: cp.Author.IconURL}
	}
	return p
}
