package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"

	// refreshSkew is how long before expiry an ID token is refreshed.
	refreshSkew = time.Minute
)

// FirebaseProvider signs users in through the Firebase Auth REST API.
type FirebaseProvider struct {
	apiKey         string
	toolkitURL     string
	secureTokenURL string
	httpClient     *http.Client
	logger         *zap.Logger
	now            func() time.Time
	refreshes      singleflight.Group

	mu           sync.Mutex
	user         *User
	idToken      string
	refreshToken string
	expiresAt    time.Time
	nextSubID    int
	subscribers  map[int]func(Event)
}

// FirebaseOption configures a FirebaseProvider.
type FirebaseOption func(*FirebaseProvider)

// WithEndpoints overrides the REST endpoints, e.g. for the auth emulator.
func WithEndpoints(identityToolkitURL, secureTokenURL string) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.toolkitURL = identityToolkitURL
		p.secureTokenURL = secureTokenURL
	}
}

func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) { p.httpClient = c }
}

func WithLogger(l *zap.Logger) FirebaseOption {
	return func(p *FirebaseProvider) { p.logger = l }
}

// WithClock replaces time.Now, used by tests to drive token expiry.
func WithClock(now func() time.Time) FirebaseOption {
	return func(p *FirebaseProvider) { p.now = now }
}

// NewFirebaseProvider creates a provider for the project identified by apiKey.
func NewFirebaseProvider(apiKey string, opts ...FirebaseOption) *FirebaseProvider {
	p := &FirebaseProvider{
		apiKey:         apiKey,
		toolkitURL:     defaultIdentityToolkitURL,
		secureTokenURL: defaultSecureTokenURL,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		logger:         zap.NewNop(),
		now:            time.Now,
		subscribers:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges email and password for a session and notifies subscribers.
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, fmt.Errorf("identity: encode sign-in request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts:signInWithPassword?key=%s", p.toolkitURL, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out signInResponse
	if err := p.do(req, &out); err != nil {
		return nil, err
	}

	user := &User{UID: out.LocalID, Email: out.Email, DisplayName: out.DisplayName}
	p.mu.Lock()
	p.user = user
	p.idToken = out.IDToken
	p.refreshToken = out.RefreshToken
	p.expiresAt = p.now().Add(parseSeconds(out.ExpiresIn))
	p.mu.Unlock()

	p.logger.Info("Signed in", zap.String("uid", user.UID))
	p.emit(Event{Kind: EventSignedIn, User: copyUser(user), At: p.now()})
	return copyUser(user), nil
}

// SignOut drops the local session. It never fails for a signed-out provider.
func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.user != nil
	p.user = nil
	p.idToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()

	if wasSignedIn {
		p.logger.Info("Signed out")
		p.emit(Event{Kind: EventSignedOut, At: p.now()})
	}
	return nil
}

// Token returns the current ID token, refreshing it when it is about to expire.
func (p *FirebaseProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.user == nil {
		p.mu.Unlock()
		return "", ErrNotSignedIn
	}
	if p.now().Add(refreshSkew).Before(p.expiresAt) {
		token := p.idToken
		p.mu.Unlock()
		return token, nil
	}
	refreshToken := p.refreshToken
	p.mu.Unlock()

	// Concurrent callers share one refresh per refresh token; the provider
	// rotates it, so a second exchange of the same token would be rejected.
	ch := p.refreshes.DoChan(refreshToken, func() (interface{}, error) {
		return p.refresh(context.WithoutCancel(ctx), refreshToken)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *FirebaseProvider) refresh(ctx context.Context, refreshToken string) (string, error) {
	p.mu.Lock()
	if p.user != nil && p.refreshToken != refreshToken && p.now().Add(refreshSkew).Before(p.expiresAt) {
		// Rotated by a flight that finished before this one started.
		token := p.idToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := fmt.Sprintf("%s/token?key=%s", p.secureTokenURL, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("identity: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := p.do(req, &out); err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.user == nil || p.refreshToken != refreshToken {
		// Signed out (or re-signed in) while the refresh was in flight.
		p.mu.Unlock()
		return "", ErrNotSignedIn
	}
	p.idToken = out.IDToken
	p.refreshToken = out.RefreshToken
	p.expiresAt = p.now().Add(parseSeconds(out.ExpiresIn))
	user := copyUser(p.user)
	p.mu.Unlock()

	p.logger.Debug("ID token refreshed", zap.String("uid", user.UID))
	p.emit(Event{Kind: EventTokenRefreshed, User: user, At: p.now()})
	return out.IDToken, nil
}

func (p *FirebaseProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyUser(p.user)
}

func (p *FirebaseProvider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	current := copyUser(p.user)
	p.mu.Unlock()

	fn(Event{Kind: EventInitial, User: current, At: p.now()})

	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

// emit calls subscribers outside the lock so they may call back into p.
func (p *FirebaseProvider) emit(ev Event) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *FirebaseProvider) do(req *http.Request, out interface{}) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var perr providerError
		_ = json.NewDecoder(resp.Body).Decode(&perr)
		p.logger.Warn("Identity provider rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("reason", perr.Error.Message))
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, perr.Error.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, perr.Error.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return nil
}

func parseSeconds(s string) time.Duration {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return time.Hour
	}
	return time.Duration(n) * time.Second
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
