package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/validation"
)

// UserUsecase defines the create, update and read operations on user records.
type UserUsecase interface {
	// CreateUser stores a new user.
	CreateUser(ctx context.Context, params CreateUserParams) (*model.User, error)

	// UpdateUser applies a partial update to an existing user.
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)

	// SaveUser stores a whole proposed document. A document without an ID is
	// created.
	SaveUser(ctx context.Context, doc *model.User) (*model.User, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, params repository.FilterUsersParams) ([]*model.User, error)
	DeleteUser(ctx context.Context, id string) (*model.User, error)
}

// CreateUserParams defines the parameters for creating a user.
type CreateUserParams struct {
	Email       string  `json:"email"        validate:"required,useremail"`
	Username    string  `json:"username"     validate:"required,username"`
	Password    string  `json:"password"     validate:"required,password"`
	DisplayName *string `json:"display_name" validate:"omitempty,min=4,max=20"`
	About       *string `json:"about"        validate:"omitempty,max=200"`
}

// UpdateUserParams defines the optional parameters for updating a user.
// Only the fields that are not nil will be updated.
type UpdateUserParams struct {
	Email            *string
	Username         *string
	Password         *string
	DisplayName      *string
	About            *string
	AvatarImage      *string
	BannerImage      *string
	Preferences      *model.Preferences
	IsEmailVerified  *bool
	TwoFactorEnabled *bool
}

func (p UpdateUserParams) changes() model.UserChanges {
	return model.UserChanges{
		Email:            p.Email,
		Username:         p.Username,
		Password:         p.Password,
		DisplayName:      p.DisplayName,
		About:            p.About,
		AvatarImage:      p.AvatarImage,
		BannerImage:      p.BannerImage,
		Preferences:      p.Preferences,
		IsEmailVerified:  p.IsEmailVerified,
		TwoFactorEnabled: p.TwoFactorEnabled,
	}
}

type userUsecase struct {
	logger   *zerolog.Logger
	userRepo repository.UserRepository
	writer   *userWriter
}

// NewUserUsecase creates a new instance of UserUsecase.
func NewUserUsecase(
	logger *zerolog.Logger,
	userRepo repository.UserRepository,
	guard *normalizer.Guard,
	validator *validation.Validator,
) UserUsecase {
	return &userUsecase{
		logger:   logger,
		userRepo: userRepo,
		writer:   newUserWriter(userRepo, guard, validator),
	}
}

func (u *userUsecase) CreateUser(ctx context.Context, params CreateUserParams) (*model.User, error) {
	if err := u.writer.validate(params); err != nil {
		return nil, err
	}

	user, err := u.writer.create(ctx, model.UserChanges{
		Email:       &params.Email,
		Username:    &params.Username,
		Password:    &params.Password,
		DisplayName: params.DisplayName,
		About:       params.About,
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info().Str("user_id", user.ID.Hex()).Msg("user created")
	return user, nil
}

func (u *userUsecase) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error) {
	changes := params.changes()
	if err := u.writer.validate(changes); err != nil {
		return nil, err
	}

	current, err := u.writer.load(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := u.writer.update(ctx, current, repository.UpdateUserParams{Changes: changes})
	if err != nil {
		return nil, err
	}

	u.logger.Info().Str("user_id", id).Bool("password_changed", changes.Password != nil).Msg("user updated")
	return user, nil
}

func (u *userUsecase) SaveUser(ctx context.Context, doc *model.User) (*model.User, error) {
	if doc.ID.IsZero() {
		params := CreateUserParams{Email: doc.Email, Username: doc.Username, Password: doc.Password}
		if err := u.writer.validate(params); err != nil {
			return nil, err
		}

		changes := model.DiffUser(nil, doc)
		if err := u.writer.validate(changes); err != nil {
			return nil, err
		}

		user, err := u.writer.create(ctx, changes)
		if err != nil {
			return nil, err
		}

		u.logger.Info().Str("user_id", user.ID.Hex()).Msg("user created")
		return user, nil
	}

	current, err := u.writer.load(ctx, doc.ID.Hex())
	if err != nil {
		return nil, err
	}

	changes := model.DiffUser(current, doc)
	if err := u.writer.validate(changes); err != nil {
		return nil, err
	}

	user, err := u.writer.replace(ctx, current, changes)
	if err != nil {
		return nil, err
	}

	u.logger.Info().Str("user_id", doc.ID.Hex()).Bool("password_changed", changes.Password != nil).Msg("user saved")
	return user, nil
}

func (u *userUsecase) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := u.userRepo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (u *userUsecase) ListUsers(ctx context.Context, params repository.FilterUsersParams) ([]*model.User, error) {
	return u.userRepo.ListUsers(ctx, params)
}

func (u *userUsecase) DeleteUser(ctx context.Context, id string) (*model.User, error) {
	user, err := u.userRepo.DeleteUser(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	u.logger.Info().Str("user_id", id).Msg("user deleted")
	return user, nil
}
