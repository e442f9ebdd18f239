package services

import (
	"fmt"

	"github.com/google/uuid"

	"messenger/auth"
	"messenger/domain"
	"messenger/errors"
	"messenger/repositories"
)

type IAccountService interface {
	Register(email, displayName, password string) (domain.User, auth.TokenPair, error)
	Login(email, password string) (domain.User, auth.TokenPair, error)
	Refresh(refreshToken string) (auth.TokenPair, error)
	Get(id uuid.UUID) (domain.User, error)
	List(limit, offset int) ([]domain.User, error)
	UpdateDisplayName(id uuid.UUID, displayName string) (domain.User, error)
	Delete(id uuid.UUID) error
}

type AccountService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenIssuer
}

func NewAccountService(users repositories.IUserRepository, tokens *auth.TokenIssuer) IAccountService {
	return &AccountService{users: users, tokens: tokens}
}

func (s *AccountService) Register(email, displayName, password string) (domain.User, auth.TokenPair, error) {
	valReq := auth.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return domain.User{}, auth.TokenPair{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, auth.TokenPair{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.users.CreateUser(email, displayName, hashedPassword)
	if err != nil {
		return domain.User{}, auth.TokenPair{}, err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate the initial session tokens
	pair, err := s.tokens.Pair(user.ID)
	if err != nil {
		return domain.User{}, auth.TokenPair{}, errors.ErrTokenGeneration
	}

	return user, pair, nil
}

func (s *AccountService) Login(email, password string) (domain.User, auth.TokenPair, error) {
	// 1. Retrieve user by email from storage
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return domain.User{}, auth.TokenPair{}, errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, auth.TokenPair{}, errors.ErrInvalidCredentials
	}

	// 3. Issue the token pair
	pair, err := s.tokens.Pair(user.ID)
	if err != nil {
		return domain.User{}, auth.TokenPair{}, errors.ErrTokenGeneration
	}

	return user, pair, nil
}

// Refresh trades a valid refresh token for a fresh pair. The account must
// still exist: deleting a user invalidates their refresh tokens.
func (s *AccountService) Refresh(refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	userID, err := claims.Subject()
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if _, err := s.users.GetUserByID(userID); err != nil {
		return auth.TokenPair{}, errors.ErrInvalidToken
	}

	pair, err := s.tokens.Pair(userID)
	if err != nil {
		return auth.TokenPair{}, errors.ErrTokenGeneration
	}
	return pair, nil
}

func (s *AccountService) Get(id uuid.UUID) (domain.User, error) {
	return s.users.GetUserByID(id)
}

func (s *AccountService) List(limit, offset int) ([]domain.User, error) {
	return s.users.ListUsers(limit, offset)
}

func (s *AccountService) UpdateDisplayName(id uuid.UUID, displayName string) (domain.User, error) {
	if err := auth.ValidateUpdate(auth.UpdateRequest{DisplayName: displayName}); err != nil {
		return domain.User{}, err
	}
	return s.users.UpdateDisplayName(id, displayName)
}

func (s *AccountService) Delete(id uuid.UUID) error {
	return s.users.DeleteUser(id)
}
