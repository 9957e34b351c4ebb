package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12

	// TokenIssuer and TokenAudience pin who minted a session token and who
	// it was minted for. Validation rejects tokens carrying anything else.
	TokenIssuer   = "codex"
	TokenAudience = "codex-clients"
)

// Claims are the session token claims. Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user id.
func (c *Claims) UserID() (int, error) {
	id, err := strconv.Atoi(c.Subject)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return id, nil
}

// Service handles registration, credential checks, and session tokens.
type Service struct {
	db         *bun.DB
	jwtSecret  []byte
	sessionTTL time.Duration
}

// NewService creates a new auth service.
func NewService(db *bun.DB, jwtSecret string, sessionTTL time.Duration) *Service {
	return &Service{
		db:         db,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
	}
}

// CountUsers returns the total number of users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// Register creates an account with a hashed password and assigns the default
// role. The very first account becomes the admin.
func (s *Service) Register(ctx context.Context, username, email, displayName, password string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	roleName := models.RoleUser
	if count == 0 {
		roleName = models.RoleAdmin
	}

	role := &models.Role{}
	err = s.db.NewSelect().
		Model(role).
		Where("r.name = ?", roleName).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if displayName == "" {
		displayName = username
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsActive:     true,
	}
	_, err = s.db.NewInsert().Model(user).Returning("*").Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, errcodes.Conflict("Email or username is already registered.")
		}
		return nil, errors.WithStack(err)
	}

	_, err = s.db.NewInsert().Model(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return s.GetUserByID(ctx, user.ID)
}

// Authenticate validates login credentials. The error never says which part
// was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.email = ? COLLATE NOCASE", email).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errcodes.InvalidCredentials()
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errcodes.InvalidCredentials()
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AuthenticateBasic accepts either the email or the username as the login.
// E-reader clients that only speak Basic Auth are usually configured with a
// username.
func (s *Service) AuthenticateBasic(ctx context.Context, login, password string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("(u.email = ? COLLATE NOCASE OR u.username = ? COLLATE NOCASE)", login, login).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errcodes.InvalidCredentials()
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errcodes.InvalidCredentials()
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves an active user with roles loaded.
func (s *Service) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) loadRoles(ctx context.Context, user *models.User) error {
	roles := []*models.Role{}
	err := s.db.NewSelect().
		Model(&roles).
		Join("JOIN user_roles ur ON ur.role_id = r.id").
		Where("ur.user_id = ?", user.ID).
		Order("r.name ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	user.Roles = roles
	return nil
}

// GenerateToken mints a signed session token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Name:  user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken checks the signature, issuer, audience, and expiry, and
// returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
