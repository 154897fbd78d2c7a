package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/models"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type AuthService interface {
	LoginUser(ctx context.Context, email, password string) (*models.User, error)
	GenerateToken(ctx context.Context, user *models.User) (*TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeToken(ctx context.Context, refreshToken string) error
	ParseAccessToken(token string) (access.Identity, error)
}

type AuthServiceImpl struct {
	db         *gorm.DB
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.AuthConfig) *AuthServiceImpl {
	return &AuthServiceImpl{
		db:         db,
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthenticated)

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, errBadCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.issue(s.db.WithContext(ctx), user)
}

func (s *AuthServiceImpl) issue(db *gorm.DB, user *models.User) (*TokenPair, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"iss":     s.issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(s.accessTTL).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	refresh, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	token := models.Token{
		UserID:       user.ID,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.refreshTTL).UTC(),
	}
	if err := db.Create(&token).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refresh.String(),
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// RefreshToken rotates a refresh token. The role is re-read so demotions take
// effect on the next refresh.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	refresh, err := uuid.FromString(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated)
	}

	var pair *TokenPair
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.Token
		if err := tx.Where("refresh_token = ? AND expires_at > ?", refresh, s.now().UTC()).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated)
			}
			return err
		}
		if err := tx.Delete(&token).Error; err != nil {
			return err
		}

		var user models.User
		if err := tx.First(&user, "id = ?", token.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: account no longer exists", apperr.ErrUnauthenticated)
			}
			return err
		}

		issued, err := s.issue(tx, &user)
		pair = issued
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthServiceImpl) RevokeToken(ctx context.Context, refreshToken string) error {
	refresh, err := uuid.FromString(refreshToken)
	if err != nil {
		return apperr.Invalid("refresh_token", "must be a UUID")
	}
	return s.db.WithContext(ctx).Where("refresh_token = ?", refresh).Delete(&models.Token{}).Error
}

// ParseAccessToken verifies signature, issuer and expiry and returns the
// caller identity carried in the claims.
func (s *AuthServiceImpl) ParseAccessToken(raw string) (access.Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return access.Identity{}, fmt.Errorf("%w: invalid token", apperr.ErrUnauthenticated)
	}

	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	uid, err := uuid.FromString(userID)
	if err != nil {
		return access.Identity{}, fmt.Errorf("%w: invalid token subject", apperr.ErrUnauthenticated)
	}

	id := access.Identity{UserID: uid, Role: access.Role(role)}
	if err := access.RequireIdentity(id); err != nil {
		return access.Identity{}, err
	}
	return id, nil
}
