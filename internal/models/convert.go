package models

import (
	"time"

	"github.com/example/menuboard/pkg/apitypes"
)

// ToAPI converts the stored user into its wire form.
func (u *User) ToAPI() apitypes.User {
	return apitypes.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Role:        u.Role,
		Disabled:    u.Disabled,
		CreatedAt:   u.CreatedAt,
	}
}

func (r *Restaurant) ToAPI() apitypes.Restaurant {
	return apitypes.Restaurant{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		LogoURL:     r.LogoURL,
		Address:     r.Address,
		Phone:       r.Phone,
		QRCode:      r.QRCode,
		QRTarget:    r.QRTarget,
		Views:       r.Views,
		Disabled:    r.Disabled,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToAPI converts the subscription, computing DaysRemaining at now.
func (s *Subscription) ToAPI(now time.Time) apitypes.Subscription {
	return apitypes.Subscription{
		RestaurantID:  s.RestaurantID,
		Plan:          s.Plan,
		Active:        s.IsActive(now),
		DaysRemaining: s.DaysRemaining(now),
		StartedAt:     s.StartedAt,
		ExpiresAt:     s.ExpiresAt,
		CanceledAt:    s.CanceledAt,
	}
}

func (c *Category) ToAPI() apitypes.Category {
	return apitypes.Category{
		ID:           c.ID,
		RestaurantID: c.RestaurantID,
		Name:         c.Name,
		Position:     c.Position,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (m *MenuItem) ToAPI() apitypes.MenuItem {
	return apitypes.MenuItem{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		CategoryID:   m.CategoryID,
		Name:         m.Name,
		Description:  m.Description,
		PriceCents:   m.PriceCents,
		ImageURL:     m.ImageURL,
		Available:    m.Available,
		Position:     m.Position,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (f *Feedback) ToAPI() apitypes.Feedback {
	return apitypes.Feedback{
		ID:           f.ID,
		RestaurantID: f.RestaurantID,
		Rating:       f.Rating,
		Comment:      f.Comment,
		CustomerName: f.CustomerName,
		CreatedAt:    f.CreatedAt,
	}
}
