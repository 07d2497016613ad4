package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sispromo/sispromo/internal/adapter/otel"
	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/port/database"
	"github.com/sispromo/sispromo/internal/secrets"
)

const (
	tokenAudience = "sispromo"
	tokenIssuer   = "sispromo-api"
)

var (
	// ErrInvalidCredentials is returned for an unknown login or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the account is deactivated or locked.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrInvalidToken is returned for a bad, expired or revoked token.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// AuthService handles accounts, passwords, and JWT access / refresh tokens.
type AuthService struct {
	store   database.Store
	cfg     *config.Auth
	secret  []byte
	keys    SigningKeys
	metrics *otel.Metrics
	now     func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, cfg *config.Auth) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

// SetMetrics attaches metric instruments. A nil Metrics disables recording.
func (s *AuthService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// SigningKeys supplies the HS256 secret by name. Previous returns the value
// replaced by the last rotation, or "".
type SigningKeys interface {
	Get(key string) string
	Previous(key string) string
}

// SetSigningKeys makes k the source of the token secret. Tokens are signed
// with the current value and accepted under the current or previous one.
func (s *AuthService) SetSigningKeys(k SigningKeys) { s.keys = k }

func (s *AuthService) currentSecret() []byte {
	if s.keys != nil {
		if v := s.keys.Get(secrets.JWTSecret); v != "" {
			return []byte(v)
		}
	}
	return s.secret
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := &user.User{
		ID:                 uuid.NewString(),
		Username:           req.Username,
		Email:              req.Email,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		CPF:                req.CPF,
		Phone:              req.Phone,
		PasswordHash:       string(hash),
		Role:               req.Role,
		Status:             user.StatusActive,
		LastPasswordChange: &now,
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login authenticates by username or email. Each wrong password counts
// towards the lockout threshold; reaching it deactivates the account.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	login := req.Login()
	ctx, span := otel.StartLoginSpan(ctx, login)
	defer span.End()

	u, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.countFailure(ctx)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !u.Active() {
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.countFailure(ctx)
		attempts, status, ferr := s.store.RecordLoginFailure(ctx, u.ID, s.cfg.MaxFailedLogins)
		if ferr != nil {
			slog.WarnContext(ctx, "failed to record login failure", "user_id", u.ID, "error", ferr)
			return nil, ErrInvalidCredentials
		}
		if status == user.StatusInactive {
			slog.WarnContext(ctx, "account locked after failed logins", "user_id", u.ID, "attempts", attempts)
			if s.metrics != nil {
				s.metrics.AccountsLocked.Add(ctx, 1)
			}
			return nil, ErrAccountInactive
		}
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.FailedLoginAttempts = 0
	u.LastLogin = &now

	access, refresh, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}

	return &user.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.cfg.AccessTokenExpiry.Seconds()),
		User:         *u,
	}, nil
}

func (s *AuthService) countFailure(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.LoginsFailed.Add(ctx, 1)
	}
}

// issueTokens signs an access token and stores a new refresh token.
func (s *AuthService) issueTokens(ctx context.Context, u *user.User) (access, refresh string, err error) {
	access, err = s.signJWT(u)
	if err != nil {
		return "", "", fmt.Errorf("sign jwt: %w", err)
	}
	refresh, err = generateRandomToken(32)
	if err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	rt := &user.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hashSHA256(refresh),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenExpiry),
	}
	if err := s.store.CreateRefreshToken(ctx, rt); err != nil {
		return "", "", fmt.Errorf("store refresh token: %w", err)
	}
	return access, refresh, nil
}

// Refresh validates a refresh token, rotates it, and issues a new pair.
// A refresh token is single-use: replaying a rotated one fails.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*user.RefreshResponse, error) {
	if rawToken == "" {
		return nil, ErrInvalidToken
	}
	rt, err := s.store.GetRefreshTokenByHash(ctx, hashSHA256(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if s.now().After(rt.ExpiresAt) {
		_ = s.store.DeleteRefreshToken(ctx, rt.ID)
		return nil, ErrInvalidToken
	}

	u, err := s.store.GetUser(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.Active() {
		_ = s.store.DeleteRefreshTokensByUser(ctx, u.ID)
		return nil, ErrAccountInactive
	}

	access, err := s.signJWT(u)
	if err != nil {
		return nil, fmt.Errorf("sign jwt: %w", err)
	}

	newRaw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	next := &user.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hashSHA256(newRaw),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenExpiry),
	}
	if err := s.store.RotateRefreshToken(ctx, rt.ID, next); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &user.RefreshResponse{
		AccessToken:  access,
		RefreshToken: newRaw,
		ExpiresIn:    int(s.cfg.AccessTokenExpiry.Seconds()),
	}, nil
}

// Logout deletes all refresh tokens for a user and revokes the current
// access token by JTI. Pass an empty jti to skip revocation.
func (s *AuthService) Logout(ctx context.Context, userID, jti string, tokenExpiry time.Time) error {
	if jti != "" {
		if err := s.store.RevokeToken(ctx, jti, tokenExpiry); err != nil {
			slog.WarnContext(ctx, "failed to revoke access token on logout", "jti", jti, "error", err)
		}
	}
	return s.store.DeleteRefreshTokensByUser(ctx, userID)
}

// ValidateAccessToken verifies a JWT and returns the claims. The revocation
// check fails closed: a store error rejects the token.
func (s *AuthService) ValidateAccessToken(ctx context.Context, tokenStr string) (*user.TokenClaims, error) {
	claims, err := s.verifyJWT(tokenStr)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		slog.ErrorContext(ctx, "token revocation check failed, denying token", "jti", claims.JTI, "error", err)
		return nil, errors.New("unable to verify token status")
	}
	if revoked {
		return nil, errors.New("token has been revoked")
	}
	return claims, nil
}

// ChangePassword verifies the old password, validates the new one, and
// clears the must-change flag. Other sessions are signed out.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req user.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return domain.Invalid(err)
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		return domain.Invalid(errors.New("current password is incorrect"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, string(hash), false); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.store.DeleteRefreshTokensByUser(ctx, userID)
}

// ResetPassword sets a new password chosen by an administrator. The user
// must change it at next login.
func (s *AuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if err := user.ValidatePasswordComplexity(newPassword); err != nil {
		return domain.Invalid(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, string(hash), true); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return s.store.DeleteRefreshTokensByUser(ctx, userID)
}

// SeedDefaultAdmin creates the initial manager when the user table is empty.
func (s *AuthService) SeedDefaultAdmin(ctx context.Context) error {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	if s.cfg.DefaultAdminPass == "" {
		slog.WarnContext(ctx, "no users exist and no default admin password is configured; skipping seed")
		return nil
	}

	u, err := s.Register(ctx, &user.CreateRequest{
		Username:  s.cfg.DefaultAdminUser,
		Email:     s.cfg.DefaultAdminEmail,
		FirstName: "Admin",
		LastName:  "SisPromo",
		Password:  s.cfg.DefaultAdminPass,
		Role:      user.RoleManager,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, u.ID, u.PasswordHash, true); err != nil {
		return fmt.Errorf("set must_change_password: %w", err)
	}

	slog.InfoContext(ctx, "seeded default manager", "username", u.Username)
	return nil
}

// StartTokenCleanup periodically purges expired refresh tokens and
// revocations until ctx is cancelled.
func (s *AuthService) StartTokenCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.PurgeExpiredTokens(ctx)
				if err != nil {
					slog.Warn("failed to purge expired tokens", "error", err)
				} else if n > 0 {
					slog.Info("purged expired tokens", "count", n)
				}
			}
		}
	}()
}

// --- JWT implementation (HS256 with stdlib) ---

// jwtHeader is the fixed base64url-encoded header for HS256.
var jwtHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

func (s *AuthService) signJWT(u *user.User) (string, error) {
	now := s.now()
	claims := user.TokenClaims{
		UserID:             u.ID,
		Username:           u.Username,
		Role:               u.Role,
		IssuedAt:           now.Unix(),
		Expiry:             now.Add(s.cfg.AccessTokenExpiry).Unix(),
		JTI:                uuid.NewString(),
		Audience:           tokenAudience,
		Issuer:             tokenIssuer,
		MustChangePassword: u.MustChangePassword,
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := jwtHeader + "." + base64URLEncode(payload)
	return signingInput + "." + s.sign(signingInput), nil
}

func (s *AuthService) sign(input string) string {
	return signWith(s.currentSecret(), input)
}

func signWith(secret []byte, input string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return base64URLEncode(mac.Sum(nil))
}

func (s *AuthService) validSignature(input, sig string) bool {
	if hmac.Equal([]byte(sig), []byte(s.sign(input))) {
		return true
	}
	if s.keys == nil {
		return false
	}
	prev := s.keys.Previous(secrets.JWTSecret)
	return prev != "" && hmac.Equal([]byte(sig), []byte(signWith([]byte(prev), input)))
}

func (s *AuthService) verifyJWT(tokenStr string) (*user.TokenClaims, error) {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}

	if !s.validSignature(parts[0]+"."+parts[1], parts[2]) {
		return nil, errors.New("invalid signature")
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims user.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	if s.now().Unix() > claims.Expiry {
		return nil, errors.New("token expired")
	}
	if claims.Audience != tokenAudience {
		return nil, errors.New("invalid token audience")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}
	if claims.JTI == "" {
		return nil, errors.New("token has no id")
	}
	return &claims, nil
}

// --- Helpers ---

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func hashSHA256(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func generateRandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
