package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
)

type userMemoryRepository struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*model.User
	now   func() time.Time
}

// NewUserMemoryRepository returns a UserRepository kept in process memory. It
// enforces the same unique keys as the MongoDB repository and reports
// failures with the same driver errors.
func NewUserMemoryRepository(now func() time.Time) UserRepository {
	if now == nil {
		now = time.Now
	}
	return &userMemoryRepository{
		users: make(map[bson.ObjectID]*model.User),
		now:   now,
	}
}

func (r *userMemoryRepository) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(user, bson.NilObjectID); err != nil {
		return nil, err
	}

	now := r.now()
	stored := *user
	stored.ID = bson.NewObjectID()
	stored.Password = ""
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.users[stored.ID] = &stored

	user.ID = stored.ID
	user.CreatedAt = now
	user.UpdatedAt = now

	return stored.Redacted(), nil
}

func (r *userMemoryRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := r.GetUserWithSecrets(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Redacted(), nil
}

func (r *userMemoryRepository) GetUserWithSecrets(_ context.Context, id string) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	c := *user
	return &c, nil
}

func (r *userMemoryRepository) GetUserByEmailWithSecrets(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			c := *user
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *userMemoryRepository) UpdateUser(_ context.Context, id string, params UpdateUserParams) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if params.ExpectedPasswordResetTokenHash != "" && user.PasswordResetTokenHash != params.ExpectedPasswordResetTokenHash {
		return nil, mongo.ErrNoDocuments
	}
	if params.ExpectedEmailVerifyTokenHash != "" && user.EmailVerifyTokenHash != params.ExpectedEmailVerifyTokenHash {
		return nil, mongo.ErrNoDocuments
	}

	next := *user
	params.Changes.ApplyTo(&next)
	next.UpdatedAt = r.now()

	if err := r.checkUnique(&next, objectID); err != nil {
		return nil, err
	}
	r.users[objectID] = &next

	return next.Redacted(), nil
}

func (r *userMemoryRepository) ReplaceUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return nil, mongo.ErrNoDocuments
	}
	if err := r.checkUnique(user, user.ID); err != nil {
		return nil, err
	}

	user.UpdatedAt = r.now()
	stored := *user
	stored.Password = ""
	r.users[user.ID] = &stored

	return stored.Redacted(), nil
}

func (r *userMemoryRepository) DeleteUser(_ context.Context, id string) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	delete(r.users, objectID)

	return user.Redacted(), nil
}

func (r *userMemoryRepository) ListUsers(_ context.Context, params FilterUsersParams) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []*model.User
	for _, user := range r.users {
		if params.Email != nil && user.Email != *params.Email {
			continue
		}
		if params.IsEmailVerified != nil && user.IsEmailVerified != *params.IsEmailVerified {
			continue
		}
		users = append(users, user.Redacted())
	}

	less := func(a, b *model.User) bool {
		if params.SortBy != nil && *params.SortBy == "email" {
			return a.Email < b.Email
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Hex() < b.ID.Hex()
	}
	sort.Slice(users, func(i, j int) bool {
		if params.SortDesc {
			return less(users[j], users[i])
		}
		return less(users[i], users[j])
	})

	limit := params.Limit
	if limit == 0 {
		limit = 10
	}
	if params.Offset >= uint64(len(users)) {
		return nil, nil
	}
	users = users[params.Offset:]
	if uint64(len(users)) > limit {
		users = users[:limit]
	}

	return users, nil
}

// checkUnique must be called with r.mu held. self is skipped so a record does
// not collide with its own previous version.
func (r *userMemoryRepository) checkUnique(user *model.User, self bson.ObjectID) error {
	for id, other := range r.users {
		if id == self {
			continue
		}
		if other.Email == user.Email {
			return duplicateKeyError(EmailIndex, user.Email)
		}
		if other.UsernameSlug == user.UsernameSlug {
			return duplicateKeyError(UsernameSlugIndex, user.UsernameSlug)
		}
	}
	return nil
}

func duplicateKeyError(index, value string) error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{
			Code: 11000,
			Message: fmt.Sprintf(
				"E11000 duplicate key error collection: %s index: %s dup key: { %q }",
				userCollection, index, value,
			),
		}},
	}
}
