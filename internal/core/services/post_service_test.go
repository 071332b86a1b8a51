package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

var errBroken = errors.New("db: connection lost")

// fakeStore simule le moteur de persistance : dépôts + unité de travail.
// WithinTx prend un snapshot et le restaure sur erreur, ce qui permet de
// vérifier réellement le rollback.
type fakeStore struct {
	posts      map[string]*domain.Post
	links      map[string][]int64
	categories map[int64]string
	users      map[string]*domain.Author

	findCalls    int
	failInsert   bool
	failSetLinks bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:      map[string]*domain.Post{},
		links:      map[string][]int64{},
		categories: map[int64]string{1: "tech", 2: "life", 3: "news"},
		users: map[string]*domain.Author{
			"user-7": {ID: "user-7", LoginID: "nanoha", Name: "Nanoha", IconURL: "https://cdn.example/7.png"},
			"user-8": {ID: "user-8", LoginID: "fate", Name: "Fate", IconURL: "https://cdn.example/8.png"},
		},
	}
}

func (f *fakeStore) Posts() ports.PostRepository      { return f }
func (f *fakeStore) Categories() ports.CategoryLinker { return f }

func (f *fakeStore) WithinTx(_ context.Context, fn func(uow ports.UnitOfWork) error) error {
	postsSnap := map[string]*domain.Post{}
	for id, p := range f.posts {
		cp := *p
		postsSnap[id] = &cp
	}
	linksSnap := map[string][]int64{}
	for id, ids := range f.links {
		linksSnap[id] = slices.Clone(ids)
	}

	if err := fn(f); err != nil {
		f.posts = postsSnap
		f.links = linksSnap
		return err
	}
	return nil
}

func (f *fakeStore) List(_ context.Context, status *domain.Status) ([]*domain.Post, error) {
	var out []*domain.Post
	for _, p := range f.posts {
		if status != nil && p.Status != *status {
			continue
		}
		cp := f.hydrate(p)
		cp.Author = f.users[p.UserID]
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, postID string) (*domain.Post, error) {
	f.findCalls++
	p, ok := f.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return f.hydrate(p), nil
}

func (f *fakeStore) Insert(_ context.Context, post *domain.Post) error {
	if f.failInsert {
		return errBroken
	}
	cp := *post
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, post *domain.Post) error {
	if _, ok := f.posts[post.ID]; !ok {
		return domain.ErrPostNotFound
	}
	cp := *post
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakeStore) Delete(_ context.Context, postID string) error {
	if _, ok := f.posts[postID]; !ok {
		return domain.ErrPostNotFound
	}
	delete(f.posts, postID)
	delete(f.links, postID) // cascade
	return nil
}

func (f *fakeStore) SetCategories(_ context.Context, postID string, categoryIDs []int64) error {
	if f.failSetLinks {
		return errBroken
	}
	for _, id := range categoryIDs {
		if _, ok := f.categories[id]; !ok {
			return domain.ErrUnknownCategory
		}
	}
	f.links[postID] = slices.Clone(categoryIDs)
	return nil
}

func (f *fakeStore) hydrate(p *domain.Post) *domain.Post {
	cp := *p
	cp.Categories = []domain.Category{}
	for _, id := range f.links[p.ID] {
		cp.Categories = append(cp.Categories, domain.Category{ID: id, Label: f.categories[id]})
	}
	return &cp
}

type fakeCache struct {
	entries map[string]*domain.Post
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string]*domain.Post{}} }

func (c *fakeCache) Get(_ context.Context, postID string) (*domain.Post, error) {
	return c.entries[postID], nil
}

func (c *fakeCache) Set(_ context.Context, post *domain.Post) error {
	c.entries[post.ID] = post
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, postID string) error {
	delete(c.entries, postID)
	return nil
}

type fakePublisher struct {
	created []string
	updated []string
	deleted []string
}

func (p *fakePublisher) PublishPostCreated(_ context.Context, post *domain.Post) error {
	p.created = append(p.created, post.ID)
	return nil
}

func (p *fakePublisher) PublishPostUpdated(_ context.Context, post *domain.Post) error {
	p.updated = append(p.updated, post.ID)
	return nil
}

func (p *fakePublisher) PublishPostDeleted(_ context.Context, postID string) error {
	p.deleted = append(p.deleted, postID)
	return nil
}

func newTestService(store *fakeStore) (ports.PostService, *fakeCache, *fakePublisher) {
	cache := newFakeCache()
	pub := &fakePublisher{}
	return NewPostService(store, store, cache, pub), cache, pub
}

func categoryIDs(p *domain.Post) []int64 {
	ids := make([]int64, len(p.Categories))
	for i, c := range p.Categories {
		ids[i] = c.ID
	}
	slices.Sort(ids)
	return ids
}

// --- CREATE ---

func TestCreatePost_WithCategories(t *testing.T) {
	store := newFakeStore()
	svc, _, pub := newTestService(store)

	post, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title:       "A",
		Body:        "B",
		Status:      domain.StatusDraft,
		UserID:      "user-7",
		CategoryIDs: []int64{1, 2},
	})
	require.NoError(t, err)
	require.NotEmpty(t, post.ID)
	assert.Equal(t, "user-7", post.UserID)
	assert.ElementsMatch(t, []int64{1, 2}, categoryIDs(post))
	assert.Equal(t, []string{post.ID}, pub.created)

	// Relecture immédiate : l'ensemble est complet, jamais partiel.
	got, err := svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, categoryIDs(got))
}

func TestCreatePost_DuplicateCategoryIDsCollapse(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)

	post, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title: "A", Body: "B", Status: domain.StatusDraft, UserID: "user-7",
		CategoryIDs: []int64{1, 1, 2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, categoryIDs(post))
}

func TestCreatePost_MissingOwner(t *testing.T) {
	store := newFakeStore()
	svc, _, pub := newTestService(store)

	_, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title: "A", Body: "B", Status: domain.StatusDraft, UserID: "",
	})
	require.ErrorIs(t, err, domain.ErrMissingOwner)
	assert.Empty(t, store.posts)
	assert.Empty(t, pub.created)
}

func TestCreatePost_RollbackOnLinkFailure(t *testing.T) {
	store := newFakeStore()
	store.failSetLinks = true
	svc, _, pub := newTestService(store)

	_, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title: "A", Body: "B", Status: domain.StatusDraft, UserID: "user-7",
		CategoryIDs: []int64{1, 2},
	})
	require.ErrorIs(t, err, errBroken)

	// Aucune trace du post : ni en lecture unitaire, ni en liste.
	assert.Empty(t, store.posts)
	posts, err := svc.ListPosts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, pub.created)
}

func TestCreatePost_UnknownCategory(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)

	_, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title: "A", Body: "B", Status: domain.StatusDraft, UserID: "user-7",
		CategoryIDs: []int64{1, 99},
	})
	require.ErrorIs(t, err, domain.ErrUnknownCategory)
	assert.Empty(t, store.posts)
}

// --- UPDATE ---

func seedPost(t *testing.T, svc ports.PostService, userID string, catIDs []int64) *domain.Post {
	t.Helper()
	post, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title: "A", Body: "B", Status: domain.StatusDraft, UserID: userID, CategoryIDs: catIDs,
	})
	require.NoError(t, err)
	return post
}

func TestUpdatePost_NotOwner(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", []int64{1, 2})

	_, err := svc.UpdatePost(context.Background(), ports.UpdatePostCmd{
		PostID: post.ID, RequesterID: "user-8",
		Title: "hacked", Body: "hacked", Status: domain.StatusPublished,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Le post n'a pas bougé.
	got, err := svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.ElementsMatch(t, []int64{1, 2}, categoryIDs(got))
}

func TestUpdatePost_NotFound(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)

	_, err := svc.UpdatePost(context.Background(), ports.UpdatePostCmd{
		PostID: "999", RequesterID: "user-7",
		Title: "A", Body: "B", Status: domain.StatusDraft,
	})
	require.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestUpdatePost_ClearCategories(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", []int64{1, 2})

	empty := []int64{}
	updated, err := svc.UpdatePost(context.Background(), ports.UpdatePostCmd{
		PostID: post.ID, RequesterID: "user-7",
		Title: "A2", Body: "B2", Status: domain.StatusPublished,
		CategoryIDs: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Categories)
	assert.Equal(t, "A2", updated.Title)
}

func TestUpdatePost_OmittedCategoriesUntouched(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", []int64{1, 2})

	updated, err := svc.UpdatePost(context.Background(), ports.UpdatePostCmd{
		PostID: post.ID, RequesterID: "user-7",
		Title: "A2", Body: "B2", Status: domain.StatusPublished,
		CategoryIDs: nil,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, categoryIDs(updated))
}

func TestUpdatePost_ReplacesCategorySet(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", []int64{1, 2})

	next := []int64{3}
	updated, err := svc.UpdatePost(context.Background(), ports.UpdatePostCmd{
		PostID: post.ID, RequesterID: "user-7",
		Title: "A", Body: "B", Status: domain.StatusDraft,
		CategoryIDs: &next,
	})
	require.NoError(t, err)
	// Remplacement complet, pas de fusion.
	assert.Equal(t, []int64{3}, categoryIDs(updated))
}

func TestUpdatePost_InvalidatesCache(t *testing.T) {
	store := newFakeStore()
	svc, cache, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", nil)

	// Amorce le cache.
	_, err := svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	require.Contains(t, cache.entries, post.ID)

	_, err = svc.UpdatePost(context.Background(), ports.UpdatePostCmd{
		PostID: post.ID, RequesterID: "user-7",
		Title: "A2", Body: "B2", Status: domain.StatusDraft,
	})
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, post.ID)

	got, err := svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Title)
}

// --- DELETE ---

func TestDeletePost_Owner(t *testing.T) {
	store := newFakeStore()
	svc, _, pub := newTestService(store)
	post := seedPost(t, svc, "user-7", []int64{1})

	deletedID, err := svc.DeletePost(context.Background(), post.ID, "user-7")
	require.NoError(t, err)
	assert.Equal(t, post.ID, deletedID)
	assert.Equal(t, []string{post.ID}, pub.deleted)

	// Suppression dure et terminale : plus aucune liaison ne traîne.
	_, err = svc.GetPost(context.Background(), post.ID)
	require.ErrorIs(t, err, domain.ErrPostNotFound)
	assert.NotContains(t, store.links, post.ID)
}

func TestDeletePost_NotOwner(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", nil)

	_, err := svc.DeletePost(context.Background(), post.ID, "user-8")
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, store.posts, post.ID)
}

func TestDeletePost_NotFound(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)

	_, err := svc.DeletePost(context.Background(), "999", "user-7")
	require.ErrorIs(t, err, domain.ErrPostNotFound)
}

// --- READ ---

func TestGetPost_ServedFromCache(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	post := seedPost(t, svc, "user-7", nil)

	_, err := svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	callsAfterFirst := store.findCalls

	_, err = svc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, store.findCalls, "second read must hit the cache")
}

func TestListPosts_StatusFilter(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	draft := seedPost(t, svc, "user-7", nil)

	published, err := svc.CreatePost(context.Background(), ports.CreatePostCmd{
		Title: "P", Body: "P", Status: domain.StatusPublished, UserID: "user-8",
	})
	require.NoError(t, err)

	all, err := svc.ListPosts(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	st := domain.StatusPublished
	filtered, err := svc.ListPosts(context.Background(), &st)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, published.ID, filtered[0].ID)
	assert.NotEqual(t, draft.ID, filtered[0].ID)
}

func TestListPosts_EmbedsRestrictedAuthor(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	seedPost(t, svc, "user-7", nil)

	posts, err := svc.ListPosts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "user-7", posts[0].Author.ID)
	assert.Equal(t, "nanoha", posts[0].Author.LoginID)
}
