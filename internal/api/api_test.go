package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/config"
	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/middleware"
	"github.com/example/menuboard/internal/qrcode"
	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/cache"
)

const webhookSecret = "whsec-test"

var jwtSecret = []byte("api-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *db.Store
	svc    Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{ClientURL: "http://localhost:3000", BillingWebhookSecret: webhookSecret, TrialDays: 14}
	store := db.NewMemoryStore()
	plans := config.DefaultPlans()

	as := core.NewAuditService(store.Audit)
	mc := core.NewMenuCache(cache.NewMemory(), time.Minute, store.Restaurants, logger)
	billing := core.NewBillingService(store.Subscriptions, plans, mc, as, logger)
	svc := Services{
		Users: core.NewUserService(store.Users, as, logger),
		Restaurants: core.NewRestaurantService(store.Restaurants, qrcode.NewGenerator(), mc, as,
			core.RestaurantSettings{TrialDays: cfg.TrialDays, PublicMenuBaseURL: cfg.ClientURL}, logger),
		Billing:   billing,
		Menu:      core.NewMenuService(store, billing, plans, mc, logger),
		Feedback:  core.NewFeedbackService(store.Restaurants, store.Feedback, nil, logger),
		Snapshots: core.NewSnapshotService(store.Restaurants, billing),
	}

	r := gin.New()
	r.Use(middleware.RecoveryMiddleware(logger))
	SetupRoutes(r, cfg, logger, middleware.NewJWTVerifier(jwtSecret), svc)
	return &testServer{t: t, router: r, store: store, svc: svc}
}

func (s *testServer) token(uid string) string {
	s.t.Helper()
	tok, err := middleware.NewJWTVerifier(jwtSecret).Generate(middleware.Identity{UID: uid, Email: uid + "@example.com"}, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(uid))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) webhook(event apitypes.BillingEvent, signature string) *httptest.ResponseRecorder {
	s.t.Helper()
	body, err := json.Marshal(event)
	require.NoError(s.t, err)
	if signature == "" {
		signature = SignWebhook([]byte(webhookSecret), body)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(body))
	req.Header.Set(WebhookSignatureHeader, signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) setup(uid, name string) apitypes.Restaurant {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/restaurants", uid, apitypes.SetupRestaurantRequest{Name: name})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var r apitypes.Restaurant
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func (s *testServer) promote(uid string) {
	s.t.Helper()
	ctx := context.Background()
	_, _, err := s.svc.Users.GetOrCreate(ctx, uid, uid+"@example.com", "", "")
	require.NoError(s.t, err)
	_, err = s.svc.Users.ChangeRole(ctx, "bootstrap", uid, apitypes.RoleAdmin)
	require.NoError(s.t, err)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, "pong", s.do(http.MethodGet, "/ping", "", nil).Body.String())
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/auth/me", "", nil).Code)

	w := s.do(http.MethodGet, "/api/v1/auth/me", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[apitypes.Snapshot](t, w)
	assert.Equal(t, "owner-1", snap.User.ID)
	assert.Equal(t, "owner-1@example.com", snap.User.Email)
	assert.Equal(t, apitypes.RoleUser, snap.User.Role)
	assert.False(t, snap.Onboarded())

	s.setup("owner-1", "La Piazza")
	snap = decode[apitypes.Snapshot](t, s.do(http.MethodGet, "/api/v1/auth/me", "owner-1", nil))
	require.True(t, snap.Onboarded())
	assert.Equal(t, "la-piazza", snap.Restaurant.Slug)
	require.NotNil(t, snap.Subscription)
	assert.Equal(t, apitypes.PlanTrial, snap.Subscription.Plan)
	assert.True(t, snap.Subscription.Active)
}

func TestInitializeUserProfile(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/users/initialize", "uid-1", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/users/initialize", "uid-1", nil).Code)
}

func TestRestaurantSetup(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/restaurants/me", "owner-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "owner routes need a restaurant")

	w = s.do(http.MethodPost, "/api/v1/restaurants", "owner-1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r := s.setup("owner-1", "La Piazza")
	assert.NotEmpty(t, r.QRCode)

	w = s.do(http.MethodPost, "/api/v1/restaurants", "owner-1", apitypes.SetupRestaurantRequest{Name: "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/restaurants", "owner-2", apitypes.SetupRestaurantRequest{Name: "Other", Slug: "la-piazza"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, "/api/v1/restaurants/me", "owner-1", map[string]string{"phone": "555-0100"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "555-0100", decode[apitypes.Restaurant](t, w).Phone)

	w = s.do(http.MethodPost, "/api/v1/restaurants/me/qrcode", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	qr := decode[apitypes.QRCodeResponse](t, w)
	assert.Equal(t, "http://localhost:3000/menu/la-piazza", qr.QRTarget)

	w = s.do(http.MethodGet, "/api/v1/restaurants/me/qrcode.png", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestMenuManagement(t *testing.T) {
	s := newTestServer(t)
	r := s.setup("owner-1", "La Piazza")

	w := s.do(http.MethodPost, "/api/v1/categories", "owner-1", map[string]interface{}{"name": "Pizzas", "position": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cat := decode[apitypes.Category](t, w)

	w = s.do(http.MethodPost, "/api/v1/menu-items", "owner-1", map[string]interface{}{
		"categoryId": cat.ID, "name": "Margherita", "priceCents": 900,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[apitypes.MenuItem](t, w)

	w = s.do(http.MethodPost, "/api/v1/menu-items", "owner-1", map[string]interface{}{"categoryId": "nope", "name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/categories/"+cat.ID, "owner-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, "/api/v1/menu-items/"+item.ID, "owner-1", map[string]interface{}{"priceCents": 950})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 950, decode[apitypes.MenuItem](t, w).PriceCents)

	items := decode[[]apitypes.MenuItem](t, s.do(http.MethodGet, "/api/v1/menu-items?categoryId="+cat.ID, "owner-1", nil))
	assert.Len(t, items, 1)

	s.setup("owner-2", "Sushi Bar")
	w = s.do(http.MethodPut, "/api/v1/menu-items/"+item.ID, "owner-2", map[string]interface{}{"name": "Stolen"})
	assert.Equal(t, http.StatusNotFound, w.Code, "other tenants' items are invisible")

	w = s.do(http.MethodGet, "/api/v1/public/menu/"+r.Slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	menu := decode[apitypes.PublicMenu](t, w)
	require.Len(t, menu.Categories, 1)
	assert.Equal(t, "Margherita", menu.Categories[0].Items[0].Name)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/public/menu/unknown", "", nil).Code)
}

func TestPlanLimitReturnsPaymentRequired(t *testing.T) {
	s := newTestServer(t)
	s.setup("owner-1", "La Piazza")

	limit := config.DefaultPlans().Limits(apitypes.PlanTrial).MaxCategories
	for i := 0; i < limit; i++ {
		w := s.do(http.MethodPost, "/api/v1/categories", "owner-1", map[string]interface{}{"name": "c"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := s.do(http.MethodPost, "/api/v1/categories", "owner-1", map[string]interface{}{"name": "c"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestBillingWebhook(t *testing.T) {
	s := newTestServer(t)
	r := s.setup("owner-1", "La Piazza")

	cancel := apitypes.BillingEvent{ID: "evt-1", Type: apitypes.BillingSubscriptionCanceled, RestaurantID: r.ID}
	assert.Equal(t, http.StatusUnauthorized, s.webhook(cancel, "deadbeef").Code)

	w := s.webhook(cancel, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Webhook received successfully", decode[apitypes.SuccessResponse](t, w).Message)
	assert.Equal(t, "Duplicate event ignored", decode[apitypes.SuccessResponse](t, s.webhook(cancel, "")).Message)

	sub := decode[apitypes.Subscription](t, s.do(http.MethodGet, "/api/v1/subscription", "owner-1", nil))
	assert.False(t, sub.Active)
	assert.Equal(t, 0, sub.DaysRemaining)

	w = s.do(http.MethodPost, "/api/v1/categories", "owner-1", map[string]interface{}{"name": "Late"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/public/menu/"+r.Slug, "", nil).Code)

	w = s.webhook(apitypes.BillingEvent{ID: "evt-2", Type: apitypes.BillingCheckoutCompleted, RestaurantID: r.ID, Plan: apitypes.PlanBasic}, "")
	require.Equal(t, http.StatusOK, w.Code)
	sub = decode[apitypes.Subscription](t, s.do(http.MethodGet, "/api/v1/subscription", "owner-1", nil))
	assert.True(t, sub.Active)
	assert.Equal(t, apitypes.PlanBasic, sub.Plan)

	w = s.webhook(apitypes.BillingEvent{ID: "evt-3", Type: "refund", RestaurantID: r.ID}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackEndpoints(t *testing.T) {
	s := newTestServer(t)
	r := s.setup("owner-1", "La Piazza")

	for _, rating := range []int{5, 3, 4} {
		w := s.do(http.MethodPost, "/api/v1/public/menu/"+r.Slug+"/feedback", "", apitypes.SubmitFeedbackRequest{Rating: rating})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := s.do(http.MethodPost, "/api/v1/public/menu/"+r.Slug+"/feedback", "", map[string]int{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	fp := decode[apitypes.FeedbackPage](t, s.do(http.MethodGet, "/api/v1/feedback?page=1&limit=2", "owner-1", nil))
	assert.EqualValues(t, 3, fp.Total)
	assert.Equal(t, 2, fp.TotalPages)
	assert.Len(t, fp.Items, 2)
	assert.InDelta(t, 4.0, fp.AverageRating, 1e-9)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.setup("owner-1", "La Piazza")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/users", "owner-1", nil).Code)

	s.promote("boss")
	users := decode[[]apitypes.User](t, s.do(http.MethodGet, "/api/v1/admin/users", "boss", nil))
	assert.Len(t, users, 2)

	w := s.do(http.MethodPut, "/api/v1/admin/users/boss/role", "boss", apitypes.UpdateRoleRequest{Role: apitypes.RoleUser})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/admin/users/owner-1/role", "boss", apitypes.UpdateRoleRequest{Role: "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/admin/restaurants/owner-1/status", "boss", apitypes.UpdateRestaurantStatusRequest{Disabled: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[apitypes.Restaurant](t, w).Disabled)

	w = s.do(http.MethodGet, "/api/v1/subscription?restaurantId=owner-1", "boss", nil)
	assert.Equal(t, http.StatusOK, w.Code, "admins bypass ownership")

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/admin/users/owner-1", "boss", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/auth/me", "owner-1", nil).Code)

	restaurants := decode[[]apitypes.Restaurant](t, s.do(http.MethodGet, "/api/v1/admin/restaurants", "boss", nil))
	assert.Len(t, restaurants, 1)
	fp := decode[apitypes.FeedbackPage](t, s.do(http.MethodGet, "/api/v1/admin/feedback", "boss", nil))
	assert.EqualValues(t, 0, fp.Total)
}

func TestPagingWithHugePageNumber(t *testing.T) {
	s := newTestServer(t)
	r := s.setup("owner-1", "La Piazza")
	s.promote("boss")
	w := s.do(http.MethodPost, "/api/v1/public/menu/"+r.Slug+"/feedback", "", apitypes.SubmitFeedbackRequest{Rating: 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	huge := "92233720368547758"
	for _, tc := range []struct{ path, uid string }{
		{"/api/v1/feedback?page=" + huge + "&limit=100", "owner-1"},
		{"/api/v1/admin/feedback?page=" + huge + "&limit=100", "boss"},
	} {
		w := s.do(http.MethodGet, tc.path, tc.uid, nil)
		require.Equal(t, http.StatusOK, w.Code, tc.path)
		fp := decode[apitypes.FeedbackPage](t, w)
		assert.Empty(t, fp.Items, tc.path)
		assert.EqualValues(t, 1, fp.Total, tc.path)
	}

	w = s.do(http.MethodGet, "/api/v1/admin/users?page="+huge+"&limit=100", "boss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]apitypes.User](t, w))
}
