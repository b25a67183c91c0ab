package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"restaurant-review-api/apperr"
	"restaurant-review-api/models"
	"restaurant-review-api/notifications"
	"restaurant-review-api/storage"
	"restaurant-review-api/store"
	"restaurant-review-api/tokens"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
	MaxUsernameLength = 50

	invalidLogin = "Invalid email/username or password"
)

// ProfilePatch is a partial profile update. NewPassword requires
// CurrentPassword to verify.
type ProfilePatch struct {
	Username        *string
	Email           *string
	CurrentPassword string
	NewPassword     string
	ProfilePicture  *multipart.FileHeader
}

type ProfileUpdateResult struct {
	User *models.User
	// EmailChangePending is set when a confirmation link was mailed instead
	// of applying the update.
	EmailChangePending bool
}

type UserService struct {
	db        *gorm.DB
	users     *store.Users
	reviews   *store.Reviews
	ratings   *RatingAggregator
	images    storage.ImageStore
	tokens    *tokens.Manager
	mailer    notifications.Mailer
	clientURL string
	log       logrus.FieldLogger
	// bcryptCost is lowered by tests.
	bcryptCost int
}

func NewUserService(
	db *gorm.DB,
	ratings *RatingAggregator,
	images storage.ImageStore,
	tm *tokens.Manager,
	mailer notifications.Mailer,
	clientURL string,
	log logrus.FieldLogger,
) *UserService {
	return &UserService{
		db:         db,
		users:      store.NewUsers(db),
		reviews:    store.NewReviews(db),
		ratings:    ratings,
		images:     images,
		tokens:     tm,
		mailer:     mailer,
		clientURL:  strings.TrimSuffix(clientURL, "/"),
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// CreateUser registers a new account. Signup always passes isAdmin=false.
func (s *UserService) CreateUser(ctx context.Context, username, email, rawPassword string, isAdmin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if !validEmail(email) {
		return nil, apperr.Validation("Please enter a valid email")
	}
	if utf8.RuneCountInString(rawPassword) < MinPasswordLength {
		return nil, apperr.Validation("Password must be at least 6 characters long")
	}

	if err := s.checkAvailable(ctx, s.users, username, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hash(rawPassword)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return nil, err
	}
	user.ReviewIDs = []uint{}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "admin": isAdmin}).Info("user created")
	return &user, nil
}

// VerifyCredentials matches identifier against username or email.
func (s *UserService) VerifyCredentials(ctx context.Context, identifier, rawPassword string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || rawPassword == "" {
		return nil, apperr.Credentials(invalidLogin)
	}
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Credentials(invalidLogin)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(rawPassword)) != nil {
		return nil, apperr.Credentials(invalidLogin)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// Promote grants the admin role. There is no demotion.
func (s *UserService) Promote(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin {
		return user, nil
	}
	user.IsAdmin = true
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", id).Info("user promoted to admin")
	return user, nil
}

// UpdateProfile applies patch to the user. When the email changes nothing
// is written: a confirmation link goes to the new address instead.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, patch ProfilePatch) (*ProfileUpdateResult, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(patch.CurrentPassword)) != nil {
			return nil, apperr.Credentials("Current password is incorrect")
		}
		if utf8.RuneCountInString(patch.NewPassword) < MinPasswordLength {
			return nil, apperr.Validation("Password must be at least 6 characters long")
		}
	}

	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if email != "" && email != user.Email {
			if !validEmail(email) {
				return nil, apperr.Validation("Please enter a valid email")
			}
			if err := s.requestEmailChange(ctx, user, email); err != nil {
				return nil, err
			}
			return &ProfileUpdateResult{User: user, EmailChangePending: true}, nil
		}
	}

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username != user.Username {
			if err := validateUsername(username); err != nil {
				return nil, err
			}
			if err := s.checkAvailable(ctx, s.users, username, "", user.ID); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}
	if patch.NewPassword != "" {
		if user.PasswordHash, err = s.hash(patch.NewPassword); err != nil {
			return nil, err
		}
	}

	oldPicture := user.ProfilePicture
	if patch.ProfilePicture != nil {
		ref, err := s.images.Save(ctx, storage.FolderProfiles, patch.ProfilePicture)
		if err != nil {
			return nil, err
		}
		user.ProfilePicture = ref
	}

	if err := s.users.Save(ctx, user); err != nil {
		if user.ProfilePicture != oldPicture {
			discardImage(ctx, s.images, s.log, user.ProfilePicture)
		}
		return nil, err
	}
	if user.ProfilePicture != oldPicture {
		discardImage(ctx, s.images, s.log, oldPicture)
	}

	s.log.WithField("user_id", id).Info("profile updated")
	return &ProfileUpdateResult{User: user}, nil
}

func (s *UserService) requestEmailChange(ctx context.Context, user *models.User, email string) error {
	taken, err := s.users.ExistsByEmail(ctx, email, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("Email is already registered")
	}

	token, err := s.tokens.IssueEmailChange(user.ID, email)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/confirm-email/%s", s.clientURL, token)
	msg := notifications.Message{
		ToEmail: email,
		ToName:  user.Username,
		Subject: "Confirm Email Change",
		HTML: fmt.Sprintf(`<h1>Confirm Email Change</h1>
<p>You have requested to change your email address. Click the link below to confirm:</p>
<a href="%s">Confirm Email Change</a>`, html.EscapeString(link)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	s.log.WithField("user_id", user.ID).Info("email change confirmation sent")
	return nil
}

// ConfirmEmail redeems an email-change token.
func (s *UserService) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ParseEmailChange(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "Invalid or expired token", err)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.Email == strings.ToLower(claims.NewEmail) {
		return user, nil
	}
	taken, err := s.users.ExistsByEmail(ctx, claims.NewEmail, user.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("Email is already registered")
	}
	user.Email = claims.NewEmail
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("email change confirmed")
	return user, nil
}

// UpdateProfilePicture stores file as the user's picture and removes the old one.
func (s *UserService) UpdateProfilePicture(ctx context.Context, id uint, file *multipart.FileHeader) (*models.User, error) {
	if file == nil {
		return nil, apperr.Validation("No file uploaded")
	}
	result, err := s.UpdateProfile(ctx, id, ProfilePatch{ProfilePicture: file})
	if err != nil {
		return nil, err
	}
	return result.User, nil
}

// DeleteUser removes the user and their reviews, recomputing the rating of
// every restaurant they reviewed, all in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	var picture string
	var affected []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		user, err := users.FindByID(ctx, id)
		if err != nil {
			return err
		}
		picture = user.ProfilePicture

		affected, err = s.reviews.WithTx(tx).DeleteByUser(ctx, id)
		if err != nil {
			return err
		}
		for _, rid := range affected {
			if _, err := s.ratings.Recompute(ctx, tx, rid); err != nil {
				return err
			}
		}
		return users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	discardImage(ctx, s.images, s.log, picture)
	s.log.WithFields(logrus.Fields{"user_id": id, "restaurants_recomputed": len(affected)}).Info("user deleted")
	return nil
}

// EnsureAdmin creates the bootstrap admin account if no user has that email.
// An existing account with the email is promoted.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.Promote(ctx, existing.ID)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	return s.CreateUser(ctx, username, email, password, true)
}

// ImageRefs lists every stored profile picture.
func (s *UserService) ImageRefs(ctx context.Context) ([]string, error) {
	return s.users.ProfilePictures(ctx)
}

func (s *UserService) checkAvailable(ctx context.Context, users *store.Users, username, email string, excludeID uint) error {
	if username != "" {
		taken, err := users.ExistsByUsername(ctx, username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("Username is already taken")
		}
	}
	if email != "" {
		taken, err := users.ExistsByEmail(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("Email is already registered")
		}
	}
	return nil
}

func (s *UserService) hash(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Validation("Password must be at most 72 bytes long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return apperr.Validation("Username must be between 3 and 50 characters")
	}
	return nil
}
