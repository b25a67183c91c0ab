package services

import (
	"context"
	"testing"
	"time"

	"restaurant-review-api/logging"
	"restaurant-review-api/models"
	"restaurant-review-api/notifications"
	"restaurant-review-api/storage"
	"restaurant-review-api/store/dbtest"
	"restaurant-review-api/tokens"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg notifications.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type testEnv struct {
	db          *gorm.DB
	images      *storage.LocalStore
	tokens      *tokens.Manager
	mailer      *mockMailer
	ratings     *RatingAggregator
	users       *UserService
	restaurants *RestaurantService
	reviews     *ReviewService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWithDB(t, dbtest.Open(t))
}

func newEnvWithDB(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()

	log := logging.Discard()
	images, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	tm := tokens.NewManager("test-secret", time.Hour, 24*time.Hour)
	mailer := &mockMailer{}
	ratings := NewRatingAggregator(db, log, nil)

	users := NewUserService(db, ratings, images, tm, mailer, "http://client.test/", log)
	users.bcryptCost = bcrypt.MinCost

	return &testEnv{
		db:          db,
		images:      images,
		tokens:      tm,
		mailer:      mailer,
		ratings:     ratings,
		users:       users,
		restaurants: NewRestaurantService(db, images, true, log),
		reviews:     NewReviewService(db, ratings, log, nil),
	}
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), name, name+"@x.com", "secret1", false)
	require.NoError(t, err)
	return u
}

func (e *testEnv) admin(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), name, name+"@x.com", "secret1", true)
	require.NoError(t, err)
	return u
}

func (e *testEnv) restaurant(t *testing.T, name string) *models.Restaurant {
	t.Helper()
	r, err := e.restaurants.Create(context.Background(), cafeInput(name), nil)
	require.NoError(t, err)
	return r
}

func cafeInput(name string) RestaurantInput {
	lat, lng := 51.5, -0.12
	return RestaurantInput{
		Name:      name,
		Cuisine:   "Cafe",
		Price:     models.PriceModerate,
		Address:   "1 High Street",
		Phone:     "555-0100",
		Latitude:  &lat,
		Longitude: &lng,
	}
}

func ptr[T any](v T) *T { return &v }
