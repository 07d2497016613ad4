// Package user defines the user domain model for authentication and
// role-based authorization. Promoters are users with RolePromoter.
package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/sispromo/sispromo/internal/domain"
)

// Role represents the authorization level of a user.
type Role string

const (
	RolePromoter Role = "promoter"
	RoleAnalyst  Role = "analyst"
	RoleManager  Role = "manager"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RolePromoter: true,
	RoleAnalyst:  true,
	RoleManager:  true,
}

// Status is the account state. Inactive accounts cannot log in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User represents a registered user.
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	CPF                 string     `json:"cpf,omitempty"`
	Phone               string     `json:"phone,omitempty"`
	PasswordHash        string     `json:"-"` // never serialized
	Role                Role       `json:"role"`
	Status              Status     `json:"status"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	LastPasswordChange  *time.Time `json:"last_password_change,omitempty"`
	MustChangePassword  bool       `json:"must_change_password"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// FullName returns "First Last".
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Active reports whether the account may log in.
func (u *User) Active() bool { return u.Status == StatusActive }

// CreateRequest is the input for registering a new user.
type CreateRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CPF       string `json:"cpf"`
	Phone     string `json:"phone"`
	Password  string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Role      Role   `json:"role"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return errors.New("username is required")
	}
	if len(r.Username) > 150 {
		return errors.New("username must be at most 150 characters")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("invalid email format")
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return errors.New("first_name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return errors.New("last_name is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if !ValidRoles[r.Role] {
		return errors.New("invalid role: must be promoter, analyst, or manager")
	}
	if r.CPF != "" && !domain.ValidCPF(r.CPF) {
		return errors.New("invalid cpf")
	}
	if r.Phone != "" && !ValidPhone(r.Phone) {
		return errors.New("phone must have 10 or 11 digits")
	}
	return nil
}

// Normalize trims whitespace and strips document formatting.
func (r *CreateRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.CPF = domain.OnlyDigits(r.CPF)
	r.Phone = domain.OnlyDigits(r.Phone)
}

// ValidPhone accepts Brazilian numbers with area code: 10 digits for
// landlines, 11 for mobiles.
func ValidPhone(s string) bool {
	n := len(domain.OnlyDigits(s))
	return n == 10 || n == 11
}

// UpdateRequest is the input for updating an existing user.
// Nil fields are left unchanged.
type UpdateRequest struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	CPF       *string `json:"cpf,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Status    *Status `json:"status,omitempty"`
}

// Validate checks the fields that are present.
func (r *UpdateRequest) Validate() error {
	if r.Email != nil {
		if _, err := mail.ParseAddress(*r.Email); err != nil {
			return errors.New("invalid email format")
		}
	}
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return errors.New("first_name must not be empty")
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return errors.New("last_name must not be empty")
	}
	if r.CPF != nil && *r.CPF != "" && !domain.ValidCPF(*r.CPF) {
		return errors.New("invalid cpf")
	}
	if r.Phone != nil && *r.Phone != "" && !ValidPhone(*r.Phone) {
		return errors.New("phone must have 10 or 11 digits")
	}
	if r.Status != nil && *r.Status != StatusActive && *r.Status != StatusInactive {
		return errors.New("invalid status: must be active or inactive")
	}
	return nil
}

// Apply copies the present fields onto u.
func (r *UpdateRequest) Apply(u *User) {
	if r.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	if r.FirstName != nil {
		u.FirstName = strings.TrimSpace(*r.FirstName)
	}
	if r.LastName != nil {
		u.LastName = strings.TrimSpace(*r.LastName)
	}
	if r.CPF != nil {
		u.CPF = domain.OnlyDigits(*r.CPF)
	}
	if r.Phone != nil {
		u.Phone = domain.OnlyDigits(*r.Phone)
	}
	if r.Status != nil {
		u.Status = *r.Status
		if u.Status == StatusActive {
			u.FailedLoginAttempts = 0
		}
	}
}

// RoleRequest changes a user's role.
type RoleRequest struct {
	Role Role `json:"role"`
}

// Validate checks the requested role.
func (r *RoleRequest) Validate() error {
	if !ValidRoles[r.Role] {
		return errors.New("invalid role: must be promoter, analyst, or manager")
	}
	return nil
}

// LoginRequest is the input for user authentication. Either username or
// email identifies the account.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	if r.Username == "" && r.Email == "" {
		return errors.New("username or email is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// Login returns the identifier the caller supplied.
func (r *LoginRequest) Login() string {
	if r.Username != "" {
		return strings.TrimSpace(r.Username)
	}
	return strings.ToLower(strings.TrimSpace(r.Email))
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	AccessToken  string `json:"access"`     //nolint:gosec // response field, not a hardcoded secret
	RefreshToken string `json:"refresh"`    //nolint:gosec // response field, not a hardcoded secret
	ExpiresIn    int    `json:"expires_in"` // seconds until access token expires
	User         User   `json:"user"`
}

// RefreshRequest carries the refresh credential.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse holds a freshly issued token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access"`  //nolint:gosec // response field, not a hardcoded secret
	RefreshToken string `json:"refresh"` //nolint:gosec // response field, not a hardcoded secret
	ExpiresIn    int    `json:"expires_in"`
}

// ChangePasswordRequest is the input for changing the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"` //nolint:gosec // request field, not a hardcoded secret
	NewPassword string `json:"new_password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks both passwords and the complexity of the new one.
func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return errors.New("old_password is required")
	}
	if r.NewPassword == "" {
		return errors.New("new_password is required")
	}
	if r.OldPassword == r.NewPassword {
		return errors.New("new_password must differ from old_password")
	}
	return ValidatePasswordComplexity(r.NewPassword)
}

// ValidatePasswordComplexity requires at least 8 characters including a
// letter and a digit.
func ValidatePasswordComplexity(pw string) error {
	if len(pw) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var letter, digit bool
	for _, c := range pw {
		switch {
		case unicode.IsLetter(c):
			letter = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !letter || !digit {
		return errors.New("password must contain a letter and a digit")
	}
	return nil
}

// TokenClaims contains the JWT payload fields.
type TokenClaims struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
	JTI      string `json:"jti"`
	Audience string `json:"aud"`
	Issuer   string `json:"iss"`

	MustChangePassword bool `json:"mcp,omitempty"`
}

// RefreshToken represents a stored refresh token.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
