// Package identity issues and verifies the bearer tokens that stand for a
// signed-in session, and tells watchers when a session ends.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthenticated)

// accountNamespace scopes the account keys derived from e-mail addresses.
var accountNamespace = uuid.MustParse("6f1c39c4-5c0e-4d5e-9a36-0f3bd5a8e1a2")

var accountsCol = docstore.Collection("accounts")

const (
	fUserID       = "userId"
	fEmail        = "email"
	fPasswordHash = "passwordHash"
)

type claims struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Provider signs HS256 tokens. Sign-out revokes the token id until the token
// would have expired anyway.
type Provider struct {
	store  core.DocumentStore
	cost   int
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	revoked  map[string]time.Time
	watchers map[string]map[int]func(*domain.Session)
	next     int
}

// New returns a provider that keeps e-mail accounts in store.
func New(store core.DocumentStore, secret string, ttl time.Duration, now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{
		store:    store,
		cost:     bcrypt.DefaultCost,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      now,
		revoked:  make(map[string]time.Time),
		watchers: make(map[string]map[int]func(*domain.Session)),
	}
}

func accountPath(email string) docstore.Path {
	return accountsCol.Doc(uuid.NewSHA1(accountNamespace, []byte(email)).String())
}

// account returns the user id of the account for email. The first sign-in
// with an address registers it with password; later ones must match it.
func (p *Provider) account(ctx context.Context, email, password string) (domain.UserID, error) {
	path := accountPath(email)
	d, err := p.store.Get(ctx, path)
	if err == nil {
		return checkPassword(d, password)
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return "", domain.Transport(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	uid := domain.UserID(uuid.NewString())
	err = p.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		return tx.Create(path, docstore.Fields{
			fUserID:       string(uid),
			fEmail:        email,
			fPasswordHash: string(hash),
		})
	})
	switch {
	case errors.Is(err, docstore.ErrExists):
		// registered concurrently
		if d, err = p.store.Get(ctx, path); err != nil {
			return "", domain.Transport(err)
		}
		return checkPassword(d, password)
	case err != nil:
		return "", domain.Transport(err)
	}
	log.Info().Str("module", "identity").Str("user", string(uid)).Msg("account registered")
	return uid, nil
}

func checkPassword(d docstore.Doc, password string) (domain.UserID, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(d.String(fPasswordHash)), []byte(password)); err != nil {
		return "", domain.ErrBadCredentials
	}
	return domain.UserID(d.String(fUserID)), nil
}

// SignIn signs in the account of profile.Email, or a fresh guest when no
// address is given.
func (p *Provider) SignIn(ctx context.Context, profile domain.Profile) (domain.Session, string, error) {
	if err := profile.Validate(); err != nil {
		return domain.Session{}, "", err
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	uid := domain.UserID(uuid.NewString())
	if email != "" {
		var err error
		if uid, err = p.account(ctx, email, profile.Password); err != nil {
			log.Warn().Err(err).Str("module", "identity").Msg("sign-in refused")
			return domain.Session{}, "", err
		}
	}
	s := domain.Session{
		UserID:      uid,
		DisplayName: strings.TrimSpace(profile.DisplayName),
		PhotoURL:    profile.PhotoURL,
		Email:       email,
	}
	now := p.now()
	c := claims{
		Name:    s.DisplayName,
		Email:   s.Email,
		Picture: s.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(s.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("sign token: %w", err)
	}
	log.Info().Str("module", "identity").Str("user", string(s.UserID)).Msg("signed in")
	return s, token, nil
}

func (p *Provider) parse(token string) (*claims, error) {
	c := &claims{}
	t, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (p *Provider) Verify(token string) (domain.Session, error) {
	c, err := p.parse(token)
	if err != nil {
		return domain.Session{}, err
	}
	p.mu.Lock()
	_, revoked := p.revoked[c.ID]
	p.mu.Unlock()
	if revoked {
		return domain.Session{}, ErrInvalidToken
	}
	return domain.Session{
		UserID:      domain.UserID(c.Subject),
		DisplayName: c.Name,
		PhotoURL:    c.Picture,
		Email:       c.Email,
	}, nil
}

// SignOut revokes token and tells its watchers the session is gone.
func (p *Provider) SignOut(_ context.Context, token string) error {
	c, err := p.parse(token)
	if err != nil {
		return err
	}
	now := p.now()
	p.mu.Lock()
	for id, exp := range p.revoked {
		if exp.Before(now) {
			delete(p.revoked, id)
		}
	}
	p.revoked[c.ID] = c.ExpiresAt.Time
	ws := p.watchers[c.ID]
	delete(p.watchers, c.ID)
	p.mu.Unlock()

	for _, fn := range ws {
		fn(nil)
	}
	log.Info().Str("module", "identity").Str("user", c.Subject).Int("watchers", len(ws)).Msg("signed out")
	return nil
}

// Watch calls fn with the session token stands for, or nil if it is not
// valid, and again with nil once the session is signed out.
func (p *Provider) Watch(token string, fn func(*domain.Session)) func() {
	s, err := p.Verify(token)
	if err != nil {
		fn(nil)
		return func() {}
	}
	c, _ := p.parse(token)

	p.mu.Lock()
	p.next++
	n := p.next
	if p.watchers[c.ID] == nil {
		p.watchers[c.ID] = make(map[int]func(*domain.Session))
	}
	p.watchers[c.ID][n] = fn
	p.mu.Unlock()

	fn(&s)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if ws, ok := p.watchers[c.ID]; ok {
			delete(ws, n)
			if len(ws) == 0 {
				delete(p.watchers, c.ID)
			}
		}
	}
}
