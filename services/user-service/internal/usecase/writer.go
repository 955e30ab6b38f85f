package usecase

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/validation"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

// userWriter is the only path by which use cases persist a user. Every write
// is validated, normalized by the guard and only then handed to the store.
type userWriter struct {
	userRepo  repository.UserRepository
	guard     *normalizer.Guard
	validator *validation.Validator
}

func newUserWriter(
	userRepo repository.UserRepository,
	guard *normalizer.Guard,
	validator *validation.Validator,
) *userWriter {
	return &userWriter{userRepo: userRepo, guard: guard, validator: validator}
}

func (w *userWriter) validate(v any) error {
	err := w.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}
	return err
}

func (w *userWriter) normalize(changes model.UserChanges, current *model.User) (model.UserChanges, error) {
	normalized, err := w.guard.Normalize(changes, current)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return model.UserChanges{}, &ValidationError{Fields: map[string]string{
				"password": "password is too long",
			}}
		}
		return model.UserChanges{}, err
	}
	return normalized, nil
}

func (w *userWriter) create(ctx context.Context, changes model.UserChanges) (*model.User, error) {
	normalized, err := w.normalize(changes, nil)
	if err != nil {
		return nil, err
	}

	user := model.NewUser()
	normalized.ApplyTo(user)

	created, err := w.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return created, nil
}

func (w *userWriter) update(
	ctx context.Context,
	current *model.User,
	params repository.UpdateUserParams,
) (*model.User, error) {
	normalized, err := w.normalize(params.Changes, current)
	if err != nil {
		return nil, err
	}
	params.Changes = normalized

	updated, err := w.userRepo.UpdateUser(ctx, current.ID.Hex(), params)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return updated, nil
}

func (w *userWriter) replace(ctx context.Context, current *model.User, changes model.UserChanges) (*model.User, error) {
	normalized, err := w.normalize(changes, current)
	if err != nil {
		return nil, err
	}

	next := *current
	normalized.ApplyTo(&next)

	saved, err := w.userRepo.ReplaceUser(ctx, &next)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return saved, nil
}

func (w *userWriter) load(ctx context.Context, id string) (*model.User, error) {
	user, err := w.userRepo.GetUserWithSecrets(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func mapWriteError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrUserNotFound
	}

	switch repository.DuplicateIndex(err) {
	case "":
		return err
	case repository.EmailIndex:
		return &UniquenessError{Field: "email"}
	case repository.UsernameSlugIndex:
		return &UniquenessError{Field: "username"}
	default:
		return &UniquenessError{Field: "record"}
	}
}
