package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

func TestRestaurantService_Create(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.restaurants.Create(ctx, "owner-1", apitypes.SetupRestaurantRequest{Name: "  La Piazza  ", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", r.ID)
	assert.Equal(t, "owner-1", r.OwnerID)
	assert.Equal(t, "La Piazza", r.Name)
	assert.Equal(t, "la-piazza", r.Slug)
	assert.Equal(t, "https://menu.example.com/menu/la-piazza", r.QRTarget)
	assert.True(t, h.hasAudit(ActionRestaurantCreate, "owner-1"))

	sub, err := h.billing.GetSubscription(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, apitypes.PlanTrial, sub.Plan)
	assert.True(t, sub.IsActive(testNow))
	assert.Equal(t, 14, sub.DaysRemaining(testNow))
}

func TestRestaurantService_CreateOnlyOncePerOwner(t *testing.T) {
	h := newHarness(t)
	h.onboard(t, "owner-1", "La Piazza")

	_, err := h.restaurants.Create(context.Background(), "owner-1", apitypes.SetupRestaurantRequest{Name: "Second"})
	assert.ErrorIs(t, err, ErrRestaurantExists)
}

func TestRestaurantService_SlugCollisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.onboard(t, "owner-1", "La Piazza")

	second, err := h.restaurants.Create(ctx, "owner-2", apitypes.SetupRestaurantRequest{Name: "La Piazza"})
	require.NoError(t, err)
	assert.Equal(t, "la-piazza-2", second.Slug)

	third, err := h.restaurants.Create(ctx, "owner-3", apitypes.SetupRestaurantRequest{Name: "La Piazza"})
	require.NoError(t, err)
	assert.Equal(t, "la-piazza-3", third.Slug)

	_, err = h.restaurants.Create(ctx, "owner-4", apitypes.SetupRestaurantRequest{Name: "Other", Slug: "La Piazza"})
	assert.ErrorIs(t, err, ErrSlugTaken, "an explicit slug is never rewritten")

	custom, err := h.restaurants.Create(ctx, "owner-5", apitypes.SetupRestaurantRequest{Name: "Other", Slug: "Chez Ünïcode"})
	require.NoError(t, err)
	assert.Equal(t, "chez-unicode", custom.Slug)
}

func TestRestaurantService_CreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.restaurants.Create(ctx, "owner-1", apitypes.SetupRestaurantRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidRestaurant)

	_, err = h.restaurants.Create(ctx, "owner-1", apitypes.SetupRestaurantRequest{Name: "Ok", Slug: "!!!"})
	assert.ErrorIs(t, err, ErrInvalidRestaurant)
}

func TestRestaurantService_Update(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.onboard(t, "owner-1", "La Piazza")

	name := "La Piazza Nuova"
	desc := "Wood-fired pizza"
	r, err := h.restaurants.Update(ctx, "owner-1", models.RestaurantUpdate{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, name, r.Name)
	assert.Equal(t, desc, r.Description)
	assert.Equal(t, "la-piazza", r.Slug, "renaming keeps the published slug")

	empty := " "
	_, err = h.restaurants.Update(ctx, "owner-1", models.RestaurantUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidRestaurant)

	_, err = h.restaurants.Update(ctx, "ghost", models.RestaurantUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrRestaurantNotFound)
}

func TestRestaurantService_QRCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.onboard(t, "owner-1", "La Piazza")

	png, err := h.restaurants.QRCodePNG(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	h.restaurants.(*restaurantService).settings.PublicMenuBaseURL = "https://new.example.com"
	r, err := h.restaurants.RegenerateQRCode(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com/menu/la-piazza", r.QRTarget)
	assert.NotEqual(t, created.QRCode, r.QRCode)

	_, err = h.restaurants.QRCodePNG(ctx, "ghost")
	assert.ErrorIs(t, err, ErrRestaurantNotFound)
}

func TestRestaurantService_SetDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.onboard(t, "owner-1", "La Piazza")

	r, err := h.restaurants.SetDisabled(ctx, "admin", "owner-1", true)
	require.NoError(t, err)
	assert.True(t, r.Disabled)
	assert.True(t, h.hasAudit(ActionRestaurantDisable, "owner-1"))

	r, err = h.restaurants.SetDisabled(ctx, "admin", "owner-1", false)
	require.NoError(t, err)
	assert.False(t, r.Disabled)
	assert.True(t, h.hasAudit(ActionRestaurantEnable, "owner-1"))

	list, err := h.restaurants.List(ctx, db.Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
