package model

import "time"

// UserChanges is a sparse set of proposed field changes to a user record.
// A nil pointer means the field is not part of the write. Both the partial
// update path and the full-document save path are expressed as a UserChanges
// before normalization and persistence.
type UserChanges struct {
	Email       *string      `json:"email"        validate:"omitempty,useremail"`
	Username    *string      `json:"username"     validate:"omitempty,username"`
	DisplayName *string      `json:"display_name" validate:"omitempty,min=4,max=20"`
	About       *string      `json:"about"        validate:"omitempty,max=200"`
	AvatarImage *string      `json:"avatar_image" validate:"omitempty,max=255"`
	BannerImage *string      `json:"banner_image" validate:"omitempty,max=255"`
	Preferences *Preferences `json:"preferences"`

	// Password is the plaintext password; normalization replaces it with
	// PasswordHash.
	Password     *string `json:"password" validate:"omitempty,password"`
	PasswordHash *string `json:"-"`

	IsEmailVerified  *bool `json:"is_email_verified"`
	TwoFactorEnabled *bool `json:"two_factor_enabled"`
	Role             *Role `json:"role"`

	// Derived or token fields. Not accepted from API callers.
	UsernameSlug           *string    `json:"-"`
	PasswordChangedAt      *time.Time `json:"-"`
	PasswordResetTokenHash *string    `json:"-"`
	PasswordResetExpires   *time.Time `json:"-"`
	EmailVerifyTokenHash   *string    `json:"-"`
	EmailVerifyExpires     *time.Time `json:"-"`

	// ClearPasswordReset removes the reset digest and expiry together.
	ClearPasswordReset bool `json:"-"`
	// ClearEmailVerify removes the verification digest and expiry together.
	ClearEmailVerify bool `json:"-"`
}

// HasPassword reports whether the password is part of this write, either as
// plaintext or as an already computed hash.
func (c UserChanges) HasPassword() bool {
	return c.Password != nil || c.PasswordHash != nil
}

// ApplyTo copies the changes onto u. Password must already be hashed.
func (c UserChanges) ApplyTo(u *User) {
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.Username != nil {
		u.Username = *c.Username
	}
	if c.UsernameSlug != nil {
		u.UsernameSlug = *c.UsernameSlug
	}
	if c.DisplayName != nil {
		u.DisplayName = *c.DisplayName
	}
	if c.About != nil {
		u.About = *c.About
	}
	if c.AvatarImage != nil {
		u.AvatarImage = *c.AvatarImage
	}
	if c.BannerImage != nil {
		u.BannerImage = *c.BannerImage
	}
	if c.Preferences != nil {
		u.Preferences = *c.Preferences
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.PasswordChangedAt != nil {
		t := *c.PasswordChangedAt
		u.PasswordChangedAt = &t
	}
	if c.IsEmailVerified != nil {
		u.IsEmailVerified = *c.IsEmailVerified
	}
	if c.TwoFactorEnabled != nil {
		u.TwoFactorEnabled = *c.TwoFactorEnabled
	}
	if c.Role != nil {
		u.Role = *c.Role
	}

	if c.ClearPasswordReset {
		u.PasswordResetTokenHash = ""
		u.PasswordResetExpires = nil
	} else if c.PasswordResetTokenHash != nil {
		u.PasswordResetTokenHash = *c.PasswordResetTokenHash
		u.PasswordResetExpires = copyTime(c.PasswordResetExpires)
	}

	if c.ClearEmailVerify {
		u.EmailVerifyTokenHash = ""
		u.EmailVerifyExpires = nil
	} else if c.EmailVerifyTokenHash != nil {
		u.EmailVerifyTokenHash = *c.EmailVerifyTokenHash
		u.EmailVerifyExpires = copyTime(c.EmailVerifyExpires)
	}
}

// DiffUser builds the change set that turns stored into proposed. A nil stored
// record diffs against an empty new record. Derived and token fields on
// proposed are ignored; proposed.Password, when set, is the new plaintext.
func DiffUser(stored, proposed *User) UserChanges {
	if stored == nil {
		stored = &User{}
	}

	var c UserChanges
	if proposed.Email != stored.Email {
		c.Email = ptr(proposed.Email)
	}
	if proposed.Username != stored.Username {
		c.Username = ptr(proposed.Username)
	}
	if proposed.DisplayName != stored.DisplayName {
		c.DisplayName = ptr(proposed.DisplayName)
	}
	if proposed.About != stored.About {
		c.About = ptr(proposed.About)
	}
	if proposed.AvatarImage != stored.AvatarImage {
		c.AvatarImage = ptr(proposed.AvatarImage)
	}
	if proposed.BannerImage != stored.BannerImage {
		c.BannerImage = ptr(proposed.BannerImage)
	}
	if proposed.Preferences != stored.Preferences {
		c.Preferences = ptr(proposed.Preferences)
	}
	if proposed.Password != "" {
		c.Password = ptr(proposed.Password)
	}
	if proposed.IsEmailVerified != stored.IsEmailVerified {
		c.IsEmailVerified = ptr(proposed.IsEmailVerified)
	}
	if proposed.TwoFactorEnabled != stored.TwoFactorEnabled {
		c.TwoFactorEnabled = ptr(proposed.TwoFactorEnabled)
	}
	if proposed.Role != stored.Role {
		c.Role = ptr(proposed.Role)
	}

	return c
}

func ptr[T any](v T) *T {
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
