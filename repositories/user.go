//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"messenger/codec"
	"messenger/domain"
	"messenger/errors"
)

type IUserRepository interface {
	CreateUser(email, displayName, passwordHash string) (domain.User, error)
	GetUserByEmail(email string) (domain.User, error)
	GetUserByID(id uuid.UUID) (domain.User, error)
	ListUsers(limit, offset int) ([]domain.User, error)
	UpdateDisplayName(id uuid.UUID, displayName string) (domain.User, error)
	DeleteUser(id uuid.UUID) error
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

// diskUser is the stored shape of an account record.
type diskUser struct {
	ID           string `cbor:"id"`
	Email        string `cbor:"email"`
	DisplayName  string `cbor:"name"`
	PasswordHash string `cbor:"hash"`
	CreatedAt    int64  `cbor:"at"` // unix seconds
}

// The primary record lives under the email key; the id key is an alias
// pointing back at the email, so both lookups stay single reads.
func userKey(email string) []byte {
	return []byte("user:" + email)
}

func userIDKey(id uuid.UUID) []byte {
	return []byte("userid:" + id.String())
}

// CreateUser persists a new account. The email must be unused.
func (u UserRepository) CreateUser(email, displayName, passwordHash string) (domain.User, error) {
	user := domain.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := codec.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(email), data); err != nil {
			return err
		}
		return txn.Set(userIDKey(user.ID), []byte(email))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var disk diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		return readUser(txn, email, &disk)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(disk)
}

func (u UserRepository) GetUserByID(id uuid.UUID) (domain.User, error) {
	var disk diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		email, err := readUserEmail(txn, id)
		if err != nil {
			return err
		}
		return readUser(txn, email, &disk)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(disk)
}

// ListUsers walks the account keyspace in email order, skipping offset
// records and collecting up to limit.
func (u UserRepository) ListUsers(limit, offset int) ([]domain.User, error) {
	var raw [][]byte
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				raw = append(raw, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var users []domain.User
	for _, b := range raw {
		var disk diskUser
		if err := codec.Unmarshal(b, &disk); err != nil {
			return nil, err
		}
		user, err := toUser(disk)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// UpdateDisplayName rewrites the record with a new display name. The email
// is immutable, so the key layout never changes.
func (u UserRepository) UpdateDisplayName(id uuid.UUID, displayName string) (domain.User, error) {
	var updated domain.User
	err := u.db.Update(func(txn *badger.Txn) error {
		email, err := readUserEmail(txn, id)
		if err != nil {
			return err
		}
		var disk diskUser
		if err := readUser(txn, email, &disk); err != nil {
			return err
		}
		disk.DisplayName = displayName

		data, err := codec.Marshal(disk)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		if err := txn.Set(userKey(email), data); err != nil {
			return err
		}
		updated, err = toUser(disk)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

func (u UserRepository) DeleteUser(id uuid.UUID) error {
	err := u.db.Update(func(txn *badger.Txn) error {
		email, err := readUserEmail(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(userKey(email)); err != nil {
			return err
		}
		return txn.Delete(userIDKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrUserNotFound
	}
	return err
}

func readUser(txn *badger.Txn, email string, disk *diskUser) error {
	item, err := txn.Get(userKey(email))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return codec.Unmarshal(val, disk)
	})
}

func readUserEmail(txn *badger.Txn, id uuid.UUID) (string, error) {
	item, err := txn.Get(userIDKey(id))
	if err != nil {
		return "", err
	}
	var email string
	err = item.Value(func(val []byte) error {
		email = string(val)
		return nil
	})
	return email, err
}

func fromUser(user domain.User) diskUser {
	return diskUser{
		ID:           user.ID.String(),
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.Unix(),
	}
}

func toUser(disk diskUser) (domain.User, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           id,
		Email:        disk.Email,
		DisplayName:  disk.DisplayName,
		PasswordHash: disk.PasswordHash,
		CreatedAt:    time.Unix(disk.CreatedAt, 0).UTC(),
	}, nil
}
