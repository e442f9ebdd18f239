package repositories

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"messenger/errors"
)

func TestUserRepository_CreateAndFetch(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	created, err := repository.CreateUser("alice@example.com", "Alice", "$argon2id$fake")
	req.NoError(err)
	req.NotEqual(uuid.Nil, created.ID)
	req.Equal("alice@example.com", created.Email)
	req.Equal("Alice", created.DisplayName)

	byEmail, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(created, byEmail)

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(created, byID)
}

func TestUserRepository_DuplicateEmailIsRefused(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	_, err := repository.CreateUser("bob@example.com", "Bob", "$argon2id$fake")
	req.NoError(err)

	_, err = repository.CreateUser("bob@example.com", "Bobby", "$argon2id$other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UnknownUser(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	_, err := repository.GetUserByEmail("ghost@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByID(uuid.New())
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_UpdateDisplayName(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	created, err := repository.CreateUser("carol@example.com", "Carol", "$argon2id$fake")
	req.NoError(err)

	updated, err := repository.UpdateDisplayName(created.ID, "Caroline")
	req.NoError(err)
	req.Equal("Caroline", updated.DisplayName)
	req.Equal(created.ID, updated.ID)

	// The change is visible through both lookup paths
	byEmail, err := repository.GetUserByEmail("carol@example.com")
	req.NoError(err)
	req.Equal("Caroline", byEmail.DisplayName)
}

func TestUserRepository_Delete(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	created, err := repository.CreateUser("dan@example.com", "Dan", "$argon2id$fake")
	req.NoError(err)

	req.NoError(repository.DeleteUser(created.ID))

	_, err = repository.GetUserByEmail("dan@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repository.GetUserByID(created.ID)
	req.ErrorIs(err, errors.ErrUserNotFound)

	// The freed email can be registered again
	_, err = repository.CreateUser("dan@example.com", "Dan II", "$argon2id$fake")
	req.NoError(err)
}

func TestUserRepository_List(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewUserRepository(db)

	for i := 0; i < 5; i++ {
		_, err := repository.CreateUser(fmt.Sprintf("user%d@example.com", i), fmt.Sprintf("User %d", i), "$argon2id$fake")
		req.NoError(err)
	}

	users, err := repository.ListUsers(3, 0)
	req.NoError(err)
	req.Len(users, 3)

	rest, err := repository.ListUsers(3, 3)
	req.NoError(err)
	req.Len(rest, 2)
}
