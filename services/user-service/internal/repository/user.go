package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/model"
)

// UserRepository defines the interface for user-related database operations.
// Reads without the WithSecrets suffix never return the password hash or token
// digests.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserWithSecrets(ctx context.Context, id string) (*model.User, error)
	GetUserByEmailWithSecrets(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)
	ReplaceUser(ctx context.Context, user *model.User) (*model.User, error)
	DeleteUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, params FilterUsersParams) ([]*model.User, error)
}

// UpdateUserParams describes a partial update. Changes must already be
// normalized. When an Expected* digest is set the update only applies if the
// stored digest still matches, which makes token redemption single-use.
type UpdateUserParams struct {
	Changes                        model.UserChanges
	ExpectedPasswordResetTokenHash string
	ExpectedEmailVerifyTokenHash   string
}

// FilterUsersParams defines the parameters for filtering and paginating users.
type FilterUsersParams struct {
	Email           *string
	IsEmailVerified *bool
	Limit           uint64
	Offset          uint64
	SortBy          *string
	SortDesc        bool
}

const userCollection = "users"

// Index names reported in duplicate key errors.
const (
	EmailIndex        = "email_unique"
	UsernameSlugIndex = "username_slug_unique"
)

var secretsProjection = bson.M{
	"password_hash":             0,
	"password_reset_token_hash": 0,
	"email_verify_token_hash":   0,
}

type userMongoRepository struct {
	db *mongo.Database
}

// NewUserMongoRepository creates the users collection indexes and returns a
// MongoDB backed UserRepository.
func NewUserMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(EmailIndex),
		},
		{
			Keys:    bson.D{{Key: "username_slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(UsernameSlugIndex),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.db.Collection(userCollection).InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		user.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return user.Redacted(), nil
}

func (r *userMongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, id, options.FindOne().SetProjection(secretsProjection))
}

func (r *userMongoRepository) GetUserWithSecrets(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, id, options.FindOne())
}

func (r *userMongoRepository) GetUserByEmailWithSecrets(ctx context.Context, email string) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, bson.M{"email": email})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) findOne(
	ctx context.Context,
	id string,
	opts *options.FindOneOptionsBuilder,
) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(userCollection).FindOne(ctx, bson.M{"_id": objectID}, opts)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) UpdateUser(
	ctx context.Context,
	id string,
	params UpdateUserParams,
) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID}
	if params.ExpectedPasswordResetTokenHash != "" {
		filter["password_reset_token_hash"] = params.ExpectedPasswordResetTokenHash
	}
	if params.ExpectedEmailVerifyTokenHash != "" {
		filter["email_verify_token_hash"] = params.ExpectedEmailVerifyTokenHash
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		filter,
		UpdateDocument(params.Changes, time.Now()),
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(secretsProjection),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) ReplaceUser(ctx context.Context, user *model.User) (*model.User, error) {
	user.UpdatedAt = time.Now()

	result, err := r.db.Collection(userCollection).ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}

	return user.Redacted(), nil
}

func (r *userMongoRepository) DeleteUser(ctx context.Context, id string) (*model.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(userCollection).FindOneAndDelete(
		ctx,
		bson.M{"_id": objectID},
		options.FindOneAndDelete().SetProjection(secretsProjection),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) ListUsers(ctx context.Context, params FilterUsersParams) ([]*model.User, error) {
	findOptions := options.Find().SetProjection(secretsProjection)

	limit := params.Limit
	if limit == 0 {
		limit = 10
	}
	findOptions.SetLimit(int64(limit))

	if params.Offset > 0 {
		findOptions.SetSkip(int64(params.Offset))
	}

	sortBy := "created_at"
	if params.SortBy != nil {
		sortBy = *params.SortBy
	}

	sortOrder := -1
	if !params.SortDesc {
		sortOrder = 1
	}
	findOptions.SetSort(bson.D{{Key: sortBy, Value: sortOrder}})

	// Build filter query
	filter := bson.M{}
	if params.Email != nil {
		filter["email"] = *params.Email
	}
	if params.IsEmailVerified != nil {
		filter["is_email_verified"] = *params.IsEmailVerified
	}

	cursor, err := r.db.Collection(userCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*model.User
	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// UpdateDocument translates normalized changes into a $set/$unset update.
func UpdateDocument(c model.UserChanges, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if c.Email != nil {
		set["email"] = *c.Email
	}
	if c.Username != nil {
		set["username"] = *c.Username
	}
	if c.UsernameSlug != nil {
		set["username_slug"] = *c.UsernameSlug
	}
	if c.DisplayName != nil {
		set["display_name"] = *c.DisplayName
	}
	if c.About != nil {
		set["about"] = *c.About
	}
	if c.AvatarImage != nil {
		set["avatar_image"] = *c.AvatarImage
	}
	if c.BannerImage != nil {
		set["banner_image"] = *c.BannerImage
	}
	if c.Preferences != nil {
		set["preferences"] = *c.Preferences
	}
	if c.PasswordHash != nil {
		set["password_hash"] = *c.PasswordHash
	}
	if c.PasswordChangedAt != nil {
		set["password_changed_at"] = *c.PasswordChangedAt
	}
	if c.IsEmailVerified != nil {
		set["is_email_verified"] = *c.IsEmailVerified
	}
	if c.TwoFactorEnabled != nil {
		set["two_factor_enabled"] = *c.TwoFactorEnabled
	}
	if c.Role != nil {
		set["role"] = *c.Role
	}

	if c.ClearPasswordReset {
		unset["password_reset_token_hash"] = ""
		unset["password_reset_expires"] = ""
	} else if c.PasswordResetTokenHash != nil {
		set["password_reset_token_hash"] = *c.PasswordResetTokenHash
		set["password_reset_expires"] = c.PasswordResetExpires
	}

	if c.ClearEmailVerify {
		unset["email_verify_token_hash"] = ""
		unset["email_verify_expires"] = ""
	} else if c.EmailVerifyTokenHash != nil {
		set["email_verify_token_hash"] = *c.EmailVerifyTokenHash
		set["email_verify_expires"] = c.EmailVerifyExpires
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// DuplicateIndex returns the name of the unique index a duplicate key error
// was raised on, or "" if err is not a duplicate key error.
func DuplicateIndex(err error) string {
	if !mongo.IsDuplicateKeyError(err) {
		return ""
	}
	for _, index := range []string{EmailIndex, UsernameSlugIndex} {
		if containsIndex(err, index) {
			return index
		}
	}
	return "unknown"
}

func containsIndex(err error, index string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorMessage(index)
}

// parseID converts a hex id. A malformed id can never match a document and is
// reported as mongo.ErrNoDocuments.
func parseID(id string) (bson.ObjectID, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: invalid user id %q", mongo.ErrNoDocuments, id)
	}
	return objectID, nil
}
