package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"restaurant-review-api/apperr"
	"restaurant-review-api/logging"
	"restaurant-review-api/models"
	"restaurant-review-api/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRestaurantValidation(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name   string
		mutate func(*RestaurantInput)
	}{
		{"missing name", func(in *RestaurantInput) { in.Name = " " }},
		{"missing cuisine", func(in *RestaurantInput) { in.Cuisine = "" }},
		{"bad price", func(in *RestaurantInput) { in.Price = "$$$$$" }},
		{"missing address", func(in *RestaurantInput) { in.Address = "" }},
		{"missing phone", func(in *RestaurantInput) { in.Phone = "" }},
		{"bad email", func(in *RestaurantInput) { in.Email = ptr("not-an-email") }},
		{"latitude out of range", func(in *RestaurantInput) { in.Latitude = ptr(91.0) }},
		{"longitude out of range", func(in *RestaurantInput) { in.Longitude = ptr(-180.5) }},
		{"missing coordinates", func(in *RestaurantInput) { in.Latitude, in.Longitude = nil, nil }},
		{"half a coordinate", func(in *RestaurantInput) { in.Longitude = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cafeInput("Cafe A")
			tt.mutate(&in)
			_, err := env.restaurants.Create(context.Background(), in, nil)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreateRestaurantWithoutCoordinatesWhenOptional(t *testing.T) {
	env := newEnv(t)
	svc := NewRestaurantService(env.db, env.images, false, logging.Discard())

	in := cafeInput("Legacy Diner")
	in.Latitude, in.Longitude = nil, nil
	r, err := svc.Create(context.Background(), in, nil)
	require.NoError(t, err)
	assert.False(t, r.HasCoordinates())

	n, err := svc.CountMissingCoordinates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListRestaurantsNewestFirstAndFeatured(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.restaurant(t, "First")
	second := env.restaurant(t, "Second")
	require.NoError(t, env.restaurants.SetFeatured(ctx, first.ID, true))

	all, err := env.restaurants.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	featured, err := env.restaurants.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, first.ID, featured[0].ID)
}

func TestFeaturedIsExclusive(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a := env.restaurant(t, "A")
	b := env.restaurant(t, "B")

	require.NoError(t, env.restaurants.SetFeatured(ctx, a.ID, true))
	require.NoError(t, env.restaurants.SetFeatured(ctx, b.ID, true))

	featured, err := env.restaurants.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, b.ID, featured[0].ID)

	in := cafeInput("C")
	in.IsFeatured = true
	c, err := env.restaurants.Create(ctx, in, nil)
	require.NoError(t, err)

	featured, err = env.restaurants.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, c.ID, featured[0].ID)

	_, err = env.restaurants.Update(ctx, a.ID, RestaurantPatch{IsFeatured: ptr(true)}, nil)
	require.NoError(t, err)
	featured, err = env.restaurants.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, a.ID, featured[0].ID)
}

func TestToggleFeatured(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a := env.restaurant(t, "A")

	on, err := env.restaurants.ToggleFeatured(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = env.restaurants.ToggleFeatured(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = env.restaurants.ToggleFeatured(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateRestaurantPartial(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	in := cafeInput("Cafe A")
	in.Email = ptr("hello@cafe.test")
	in.OpeningHours = ptr("8-18")
	r, err := env.restaurants.Create(ctx, in, nil)
	require.NoError(t, err)

	updated, err := env.restaurants.Update(ctx, r.ID, RestaurantPatch{
		Name:  ptr("Cafe B"),
		Price: ptr(models.PriceLuxury),
		Email: ptr(""),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Cafe B", updated.Name)
	assert.Equal(t, models.PriceLuxury, updated.Price)
	assert.Nil(t, updated.Email)
	require.NotNil(t, updated.OpeningHours)
	assert.Equal(t, "8-18", *updated.OpeningHours)
	assert.Equal(t, "Cafe", updated.Cuisine)

	_, err = env.restaurants.Update(ctx, r.ID, RestaurantPatch{Latitude: ptr(-95.0)}, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.restaurants.Update(ctx, 999, RestaurantPatch{Name: ptr("x")}, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRestaurantImageReplacement(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	r, err := env.restaurants.Create(ctx, cafeInput("Cafe A"), storagetest.FileHeader(t, "front.png", storagetest.PNG))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(r.ImageURL, "/uploads/restaurants/"))
	oldPath := filepath.Join(env.images.Root(), "restaurants", filepath.Base(r.ImageURL))
	assert.FileExists(t, oldPath)

	updated, err := env.restaurants.Update(ctx, r.ID, RestaurantPatch{}, storagetest.FileHeader(t, "new.jpg", storagetest.JPEG))
	require.NoError(t, err)
	assert.NotEqual(t, r.ImageURL, updated.ImageURL)
	assert.NoFileExists(t, oldPath)

	_, err = env.restaurants.Update(ctx, r.ID, RestaurantPatch{}, storagetest.FileHeader(t, "doc.pdf", []byte("%PDF-1.4")))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteRestaurantCascadesReviews(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	r, err := env.restaurants.Create(ctx, cafeInput("Cafe A"), storagetest.FileHeader(t, "front.png", storagetest.PNG))
	require.NoError(t, err)
	other := env.restaurant(t, "Bistro B")

	_, err = env.reviews.Create(ctx, bob.ID, r.ID, 4, "good")
	require.NoError(t, err)
	_, err = env.reviews.Create(ctx, carol.ID, r.ID, 2, "meh")
	require.NoError(t, err)
	_, err = env.reviews.Create(ctx, bob.ID, other.ID, 5, "great")
	require.NoError(t, err)

	require.NoError(t, env.restaurants.Delete(ctx, r.ID))

	left, err := env.reviews.ListByRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := env.reviews.ListByRestaurant(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	_, err = os.Stat(filepath.Join(env.images.Root(), "restaurants", filepath.Base(r.ImageURL)))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, env.restaurants.Delete(ctx, r.ID), apperr.ErrNotFound)
}
