package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"news_portal/internal/domain"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.Email
	fail map[string]error
	hang map[string]bool
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{fail: make(map[string]error), hang: make(map[string]bool)}
}

func (m *recordingMailer) Send(ctx context.Context, msg domain.Email) error {
	m.mu.Lock()
	hang := m.hang[msg.To]
	m.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[msg.To]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	slices.Sort(out)
	return out
}

type memoryDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
	err  error
}

func newMemoryDedup() *memoryDedup {
	return &memoryDedup{seen: make(map[string]struct{})}
}

func (d *memoryDedup) Once(_ context.Context, key string, _ time.Duration, fn func() error) (bool, error) {
	d.mu.Lock()
	if d.err != nil {
		d.mu.Unlock()
		return false, d.err
	}
	if _, ok := d.seen[key]; ok {
		d.mu.Unlock()
		return false, nil
	}
	d.seen[key] = struct{}{}
	d.mu.Unlock()

	if err := fn(); err != nil {
		d.mu.Lock()
		delete(d.seen, key)
		d.mu.Unlock()
		return true, err
	}
	return true, nil
}

type staticSite struct {
	domain string
	err    error
}

func (s staticSite) CanonicalDomain(context.Context) (string, error) {
	return s.domain, s.err
}

// memoryPortal is an in-memory content store covering posts, categories,
// authors and subscriptions.
type memoryPortal struct {
	mu            sync.Mutex
	nextPostID    int64
	posts         map[int64]domain.Post
	categories    []domain.Category
	users         map[int64]domain.User
	authors       map[int64]domain.Author
	subscriptions map[int64][]int64
}

func newMemoryPortal() *memoryPortal {
	return &memoryPortal{
		posts:         make(map[int64]domain.Post),
		users:         make(map[int64]domain.User),
		authors:       make(map[int64]domain.Author),
		subscriptions: make(map[int64][]int64),
	}
}

func (p *memoryPortal) Create(_ context.Context, post *domain.Post) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextPostID++
	stored := *post
	stored.ID = p.nextPostID
	stored.CategoryIDs = nil
	p.posts[stored.ID] = stored
	return stored.ID, nil
}

func (p *memoryPortal) Update(_ context.Context, post *domain.Post) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored, ok := p.posts[post.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Title = post.Title
	stored.Content = post.Content
	p.posts[post.ID] = stored
	return nil
}

func (p *memoryPortal) Delete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(p.posts, id)
	return nil
}

func (p *memoryPortal) GetByID(_ context.Context, id int64) (*domain.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	post, ok := p.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	post.CategoryIDs = slices.Clone(post.CategoryIDs)
	return &post, nil
}

func (p *memoryPortal) CountByAuthorBetween(_ context.Context, authorID int64, postType domain.PostType, from, to time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, post := range p.posts {
		if post.AuthorID == authorID && post.Type == postType && !post.CreatedAt.Before(from) && post.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (p *memoryPortal) ListByCategorySince(_ context.Context, categoryID int64, since time.Time) ([]domain.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Post
	for _, post := range p.posts {
		if slices.Contains(post.CategoryIDs, categoryID) && !post.CreatedAt.Before(since) {
			out = append(out, post)
		}
	}
	slices.SortFunc(out, func(a, b domain.Post) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (p *memoryPortal) ListByCategory(_ context.Context, categoryID int64, postType domain.PostType) ([]domain.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Post
	for _, post := range p.posts {
		if slices.Contains(post.CategoryIDs, categoryID) && post.Type == postType {
			out = append(out, post)
		}
	}
	return out, nil
}

func (p *memoryPortal) AttachCategories(_ context.Context, postID int64, categoryIDs []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	post, ok := p.posts[postID]
	if !ok {
		return domain.ErrNotFound
	}
	post.CategoryIDs = append(post.CategoryIDs, categoryIDs...)
	p.posts[postID] = post
	return nil
}

func (p *memoryPortal) List(context.Context) ([]domain.Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.categories), nil
}

func (p *memoryPortal) GetByName(_ context.Context, name string) (*domain.Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.categories {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (p *memoryPortal) CountExisting(_ context.Context, ids []int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.categories {
		if slices.Contains(ids, c.ID) {
			n++
		}
	}
	return n, nil
}

func (p *memoryPortal) SubscribersOf(_ context.Context, categoryIDs []int64) ([]domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.User
	for userID, cats := range p.subscriptions {
		for _, c := range cats {
			if slices.Contains(categoryIDs, c) {
				out = append(out, p.users[userID])
				break
			}
		}
	}
	return out, nil
}

func (p *memoryPortal) Subscribe(_ context.Context, userID, categoryID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.subscriptions[userID], categoryID) {
		p.subscriptions[userID] = append(p.subscriptions[userID], categoryID)
	}
	return nil
}

func (p *memoryPortal) Unsubscribe(_ context.Context, userID, categoryID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[userID] = slices.DeleteFunc(p.subscriptions[userID], func(c int64) bool { return c == categoryID })
	return nil
}

func (p *memoryPortal) Subscriptions(_ context.Context, userID int64) ([]domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Subscription
	for _, c := range p.subscriptions[userID] {
		out = append(out, domain.Subscription{UserID: userID, CategoryID: c})
	}
	return out, nil
}

func (p *memoryPortal) GetOrCreate(_ context.Context, userID int64) (*domain.Author, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.authors[userID]
	if !ok {
		a = domain.Author{ID: int64(len(p.authors) + 1), UserID: userID}
		p.authors[userID] = a
	}
	return &a, nil
}

func (p *memoryPortal) GetByUserID(_ context.Context, userID int64) (*domain.Author, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.authors[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

var (
	_ PostStore     = (*memoryPortal)(nil)
	_ CategoryStore = (*memoryPortal)(nil)
	_ AuthorStore   = (*memoryPortal)(nil)
)

type inlineTx struct{}

func (inlineTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (inlineTx) LockAuthor(context.Context, int64) error { return nil }

var errSMTPDown = errors.New("smtp unavailable")
