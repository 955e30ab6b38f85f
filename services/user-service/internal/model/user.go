package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// DefaultImage is the avatar and banner used until the user uploads one.
const DefaultImage = "default.jpg"

// User represents an identity record.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"              json:"id"`
	Email        string        `bson:"email"                      json:"email"`
	Username     string        `bson:"username"                   json:"username"`
	UsernameSlug string        `bson:"username_slug"              json:"username_slug"`
	DisplayName  string        `bson:"display_name,omitempty"     json:"display_name,omitempty"`
	About        string        `bson:"about,omitempty"            json:"about,omitempty"`
	AvatarImage  string        `bson:"avatar_image"               json:"avatar_image"`
	BannerImage  string        `bson:"banner_image"               json:"banner_image"`
	Preferences  Preferences   `bson:"preferences"                json:"preferences"`

	// Password is only ever set on a proposed document handed to a full save.
	// It is never persisted.
	Password string `bson:"-" json:"-"`

	PasswordHash           string     `bson:"password_hash,omitempty"             json:"-"`
	PasswordChangedAt      *time.Time `bson:"password_changed_at,omitempty"       json:"password_changed_at,omitempty"`
	PasswordResetTokenHash string     `bson:"password_reset_token_hash,omitempty" json:"-"`
	PasswordResetExpires   *time.Time `bson:"password_reset_expires,omitempty"    json:"-"`
	EmailVerifyTokenHash   string     `bson:"email_verify_token_hash,omitempty"   json:"-"`
	EmailVerifyExpires     *time.Time `bson:"email_verify_expires,omitempty"      json:"-"`

	IsEmailVerified  bool `bson:"is_email_verified"  json:"is_email_verified"`
	TwoFactorEnabled bool `bson:"two_factor_enabled" json:"two_factor_enabled"`
	Role             Role `bson:"role"               json:"role"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Preferences holds the user's account settings.
type Preferences struct {
	NSFW                bool `bson:"nsfw"                 json:"nsfw"`
	Private             bool `bson:"private"              json:"private"`
	ShowActivity        bool `bson:"show_activity"        json:"show_activity"`
	ShowInSearch        bool `bson:"show_in_search"       json:"show_in_search"`
	ShowAdultContent    bool `bson:"show_adult_content"   json:"show_adult_content"`
	SafeBrowsing        bool `bson:"safe_browsing"        json:"safe_browsing"`
	AutoplayMedia       bool `bson:"autoplay_media"       json:"autoplay_media"`
	InboxNotification   bool `bson:"inbox_notification"   json:"inbox_notification"`
	InboxMarkAsRead     bool `bson:"inbox_mark_as_read"   json:"inbox_mark_as_read"`
	MentionNotification bool `bson:"mention_notification" json:"mention_notification"`
	EmailNotifications  bool `bson:"email_notifications"  json:"email_notifications"`
}

// DefaultPreferences returns the settings of a freshly created account.
func DefaultPreferences() Preferences {
	return Preferences{
		ShowActivity:        true,
		ShowInSearch:        true,
		AutoplayMedia:       true,
		InboxNotification:   true,
		InboxMarkAsRead:     true,
		MentionNotification: true,
		EmailNotifications:  true,
	}
}

// NewUser returns an empty record carrying the schema defaults.
func NewUser() *User {
	return &User{
		AvatarImage: DefaultImage,
		BannerImage: DefaultImage,
		Preferences: DefaultPreferences(),
		Role:        RoleUser,
	}
}

// Redacted returns a copy of u without the password hash and token digests.
func (u *User) Redacted() *User {
	c := *u
	c.Password = ""
	c.PasswordHash = ""
	c.PasswordResetTokenHash = ""
	c.EmailVerifyTokenHash = ""
	return &c
}
