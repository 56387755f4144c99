package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/config"
	"github.com/neovalpox/backupControl/internal/models"
	jwtpkg "github.com/neovalpox/backupControl/pkg/jwt"
)

// AuthService authenticates the single admin account configured in the
// environment. There is no user registration; the dashboard is an internal
// operations tool.
type AuthService struct {
	db           *gorm.DB
	redis        *redis.Client
	cfg          *config.Config
	passwordHash []byte
}

func NewAuthService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	return &AuthService{
		db:           db,
		redis:        redisClient,
		cfg:          cfg,
		passwordHash: hash,
	}, nil
}

// Login verifies the admin credentials and returns an access and a refresh
// token.
func (s *AuthService) Login(username, password string) (string, string, error) {
	if username != s.cfg.AdminUsername {
		return "", "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", "", errors.New("invalid credentials")
	}

	accessToken, err := jwtpkg.GenerateToken(username, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := jwtpkg.GenerateToken(username, jwtpkg.RefreshToken, s.cfg.JWTSecret, s.cfg.JWTRefreshTokenDuration)
	if err != nil {
		return "", "", err
	}

	tokenModel := &models.RefreshToken{
		Username:  username,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshTokenDuration),
	}
	if err := s.db.Create(tokenModel).Error; err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (s *AuthService) RefreshToken(refreshToken string) (string, error) {
	claims, err := jwtpkg.ValidateToken(refreshToken, s.cfg.JWTSecret)
	if err != nil {
		return "", errors.New("invalid refresh token")
	}
	if claims.TokenType != jwtpkg.RefreshToken {
		return "", errors.New("invalid token type")
	}

	var tokenModel models.RefreshToken
	if err := s.db.Where("token = ?", refreshToken).First(&tokenModel).Error; err != nil {
		return "", errors.New("refresh token not found")
	}
	if time.Now().After(tokenModel.ExpiresAt) {
		return "", errors.New("refresh token expired")
	}

	return jwtpkg.GenerateToken(claims.Username, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
}

// Logout drops the stored refresh tokens and blacklists the presented access
// token for its remaining lifetime.
func (s *AuthService) Logout(username, accessToken string) error {
	if err := s.db.Where("username = ?", username).Delete(&models.RefreshToken{}).Error; err != nil {
		return err
	}

	claims, err := jwtpkg.ValidateToken(accessToken, s.cfg.JWTSecret)
	if err != nil {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 || s.redis == nil {
		return nil
	}

	ctx := context.Background()
	blacklistKey := fmt.Sprintf("blacklist:token:%s", accessToken)
	if err := s.redis.Set(ctx, blacklistKey, "1", remaining).Err(); err != nil {
		log.Printf("WARN: could not blacklist token in Redis: %v", err)
	}
	return nil
}

// ValidateAccessToken validates an access token and returns its claims. The
// Redis blacklist check degrades open: if Redis is unreachable the token is
// accepted on signature alone.
func (s *AuthService) ValidateAccessToken(token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != jwtpkg.AccessToken {
		return nil, errors.New("invalid token type")
	}

	if s.redis != nil {
		ctx := context.Background()
		blacklistKey := fmt.Sprintf("blacklist:token:%s", token)
		exists, err := s.redis.Exists(ctx, blacklistKey).Result()
		if err != nil {
			log.Printf("WARN: could not check token blacklist in Redis: %v", err)
		} else if exists > 0 {
			return nil, errors.New("token is revoked")
		}
	}
	return claims, nil
}

// CleanupExpiredTokens removes expired refresh tokens.
func (s *AuthService) CleanupExpiredTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{}).Error
}
