package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"messenger/auth"
	"messenger/domain"
	"messenger/errors"
	"messenger/mocks"
)

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("access-secret", "refresh-secret", 30*time.Minute, 168*time.Hour)
}

func TestAccountService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := newTestIssuer()
	svc := NewAccountService(mockRepo, issuer)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		email := "test@example.com"
		password := "ComplexPass123!" // Must satisfy the complexity rules
		userID := uuid.New()

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(email, "Tester", gomock.Any()).
			DoAndReturn(func(email, displayName, passwordHash string) (domain.User, error) {
				require.True(t, strings.HasPrefix(passwordHash, "$argon2id$"))
				require.NotEqual(t, password, passwordHash)
				return domain.User{ID: userID, Email: email, DisplayName: displayName, PasswordHash: passwordHash}, nil
			}).
			Times(1)

		user, pair, err := svc.Register(email, "Tester", password)

		req.NoError(err)
		req.Equal(userID, user.ID)
		req.NotEmpty(pair.AccessToken)
		req.NotEmpty(pair.RefreshToken)

		// The minted token belongs to the freshly created account
		claims, err := issuer.VerifyAccess(pair.AccessToken)
		req.NoError(err)
		subject, err := claims.Subject()
		req.NoError(err)
		req.Equal(userID, subject)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := svc.Register("test@example.com", "Tester", "simple")

		req.ErrorIs(err, errors.ErrInvalidPassword)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("duplicate@example.com", "Tester", gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, _, err := svc.Register("duplicate@example.com", "Tester", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAccountService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := newTestIssuer()
	svc := NewAccountService(mockRepo, issuer)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, _ := auth.HashPassword(password)
		storedUser := domain.User{
			ID:           uuid.New(),
			Email:        email,
			DisplayName:  "User",
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		user, pair, err := svc.Login(email, password)

		req.NoError(err)
		req.Equal(storedUser.ID, user.ID)
		req.NotEmpty(pair.AccessToken)

		claims, err := issuer.VerifyAccess(pair.AccessToken)
		req.NoError(err)
		subject, err := claims.Subject()
		req.NoError(err)
		req.Equal(storedUser.ID, subject)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, _ := auth.HashPassword("CorrectPassword123!")
		storedUser := domain.User{
			Email:        email,
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		_, _, err := svc.Login(email, "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		// Same error either way, to prevent user enumeration
		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, _, err := svc.Login("unknown@example.com", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAccountService_Refresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := newTestIssuer()
	svc := NewAccountService(mockRepo, issuer)

	t.Run("should mint a new pair for a live account", func(t *testing.T) {
		req := require.New(t)
		userID := uuid.New()
		pair, err := issuer.Pair(userID)
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByID(userID).
			Return(domain.User{ID: userID}, nil).
			Times(1)

		fresh, err := svc.Refresh(pair.RefreshToken)
		req.NoError(err)
		req.NotEmpty(fresh.AccessToken)
		req.NotEmpty(fresh.RefreshToken)
	})

	t.Run("should reject the refresh of a deleted account", func(t *testing.T) {
		req := require.New(t)
		userID := uuid.New()
		pair, err := issuer.Pair(userID)
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByID(userID).
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err = svc.Refresh(pair.RefreshToken)
		req.ErrorIs(err, errors.ErrInvalidToken)
	})

	t.Run("should reject an access token presented as refresh", func(t *testing.T) {
		req := require.New(t)
		pair, err := issuer.Pair(uuid.New())
		req.NoError(err)

		mockRepo.EXPECT().GetUserByID(gomock.Any()).Times(0)

		_, err = svc.Refresh(pair.AccessToken)
		req.ErrorIs(err, errors.ErrInvalidToken)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		req := require.New(t)

		_, err := svc.Refresh("not-a-token")
		req.ErrorIs(err, errors.ErrInvalidToken)
	})
}

func TestAccountService_UpdateDisplayName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAccountService(mockRepo, newTestIssuer())

	t.Run("should persist a valid display name", func(t *testing.T) {
		req := require.New(t)
		userID := uuid.New()

		mockRepo.EXPECT().
			UpdateDisplayName(userID, "New Name").
			Return(domain.User{ID: userID, DisplayName: "New Name"}, nil).
			Times(1)

		user, err := svc.UpdateDisplayName(userID, "New Name")
		req.NoError(err)
		req.Equal("New Name", user.DisplayName)
	})

	t.Run("should refuse an empty display name before touching storage", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().UpdateDisplayName(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.UpdateDisplayName(uuid.New(), "")
		req.Error(err)
	})
}
