package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/models"
)

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
	// conflicts makes the next n UpdatePublishState calls lose the race
	conflicts int
	onConflict func(stored *models.Post)
	writes     int
	nextID     int64
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: map[int64]*models.Post{}, nextID: 100}
	for _, p := range posts {
		r.posts[p.ID] = clonePost(p)
	}
	return r
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Hashtags = append([]string(nil), p.Hashtags...)
	c.TargetPlatforms = append([]string(nil), p.TargetPlatforms...)
	c.PublishedPlatforms = append([]string(nil), p.PublishedPlatforms...)
	c.PlatformResults = models.PlatformResults{}
	for k, v := range p.PlatformResults {
		c.PlatformResults[k] = v
	}
	if p.ErrorMessage != nil {
		msg := *p.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := clonePost(post)
	stored.ID = r.nextID
	r.posts[stored.ID] = stored
	return stored.ID, nil
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(now) {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (r *fakePostRepo) UpdatePublishState(ctx context.Context, post *models.Post) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++

	stored, ok := r.posts[post.ID]
	if !ok {
		return false, nil
	}
	if r.conflicts > 0 {
		r.conflicts--
		stored.Version++
		if r.onConflict != nil {
			r.onConflict(stored)
		}
		return false, nil
	}
	if stored.Version != post.Version {
		return false, nil
	}

	post.Version++
	r.posts[post.ID] = clonePost(post)
	return true, nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	return ok && p.UserID == userID, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepo) get(id int64) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePost(r.posts[id])
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.SocialAccount
}

func (r *fakeAccountRepo) Connect(ctx context.Context, sa *models.SocialAccount, vault *models.VaultEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == sa.UserID && a.Platform == sa.Platform {
			a.IsActive = false
		}
	}
	sa.ID = int64(len(r.accounts) + 1)
	sa.IsActive = true
	r.accounts = append(r.accounts, sa)
	return sa.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetActiveByPlatform(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.Platform == platform.String() && a.IsActive {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.ExpiringCredential, error) {
	return nil, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == accountID && a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAccountRepo) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			a.IsActive = false
		}
	}
	return nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func (r *fakeAttemptRepo) Create(ctx context.Context, pa *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, pa)
	return int64(len(r.attempts)), nil
}

func (r *fakeAttemptRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeCredentials resolves against fakeAccountRepo; accounts listed in
// missingVault have no vault entry.
type fakeCredentials struct {
	accounts     *fakeAccountRepo
	missingVault map[models.Platform]bool
	connected    []*models.SocialAccount
	tokens       []string
}

func (c *fakeCredentials) Resolve(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, models.Credentials, error) {
	acc, _ := c.accounts.GetActiveByPlatform(ctx, userID, platform)
	if acc == nil {
		return nil, models.Credentials{}, &CredentialError{Platform: platform, Message: "No active " + platform.String() + " account connected"}
	}
	if c.missingVault[platform] {
		return acc, models.Credentials{}, &CredentialError{Platform: platform, Message: "Credentials for " + platform.String() + " are missing"}
	}
	return acc, models.Credentials{AccountID: acc.AccountID, AccessToken: "token-" + platform.String(), Metadata: acc.Metadata}, nil
}

func (c *fakeCredentials) Connect(ctx context.Context, sa *models.SocialAccount, accessToken, secret string, expiresAt *time.Time) (int64, error) {
	c.connected = append(c.connected, sa)
	c.tokens = append(c.tokens, accessToken)
	return c.accounts.Connect(ctx, sa, &models.VaultEntry{AccessToken: accessToken, Secret: secret, ExpiresAt: expiresAt})
}

func (c *fakeCredentials) UpdateToken(ctx context.Context, socialAccountID int64, accessToken string, expiresAt *time.Time) error {
	return nil
}

func (c *fakeCredentials) Decrypt(value string) (string, error) {
	return value, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	platform models.Platform
	err      error
	calls    []adapters.Message
}

func (p *fakePublisher) Platform() models.Platform {
	return p.platform
}

func (p *fakePublisher) Publish(ctx context.Context, creds models.Credentials, msg adapters.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, msg)
	if p.err != nil {
		return "", p.err
	}
	return "remote-" + p.platform.String(), nil
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: map[string]*models.OAuthState{}}
}

func (r *fakeStateRepo) Create(ctx context.Context, state *models.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *state
	r.states[state.FlowToken] = &c
	return nil
}

func (r *fakeStateRepo) Take(ctx context.Context, flowToken string) (*models.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[flowToken]
	if !ok {
		return nil, nil
	}
	delete(r.states, flowToken)
	return s, nil
}

func (r *fakeStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.states {
		if s.Expired(now) {
			delete(r.states, k)
			n++
		}
	}
	return n, nil
}

// only returns the single stored state.
func (r *fakeStateRepo) only() *models.OAuthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		return s
	}
	return nil
}
