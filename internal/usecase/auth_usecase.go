package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
)

// AuthUsecase validates bearer credentials for both the HTTP layer and the
// websocket handshake, and mints session tokens for identities already
// verified by the upstream OAuth flow.
type AuthUsecase interface {
	ValidateToken(ctx context.Context, tokenString string) (*models.User, error)
	IssueToken(user *models.User, ttl time.Duration) (string, error)
	Login(ctx context.Context, username string, ttl time.Duration) (*models.User, string, error)
}

type authUsecase struct {
	userRepo  mongodb.UserRepository
	jwtSecret []byte
}

func NewAuthUsecase(userRepo mongodb.UserRepository, jwtSecret string) AuthUsecase {
	return &authUsecase{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateToken distinguishes a missing/malformed credential
// (ErrUnauthenticated) from one that parses but fails signature or expiry
// checks (ErrInvalidCredential), so callers can tell "malformed request"
// apart from "please sign in again".
func (uc *authUsecase) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, models.ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return uc.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, models.ErrUnauthenticated
		}
		return nil, models.ErrInvalidCredential
	}
	if !token.Valid {
		return nil, models.ErrInvalidCredential
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, models.ErrInvalidCredential
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

// Login resolves a username to its user, creating the account on first use,
// and hands back a fresh session token. The real credential check happens in
// the OAuth flow upstream of this service; by the time a username reaches
// here it is already verified.
func (uc *authUsecase) Login(ctx context.Context, username string, ttl time.Duration) (*models.User, string, error) {
	if username == "" {
		return nil, "", fmt.Errorf("%w: username is required", models.ErrValidation)
	}

	user, err := uc.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		user = &models.User{Username: username}
		if err := uc.userRepo.Create(ctx, user); err != nil {
			return nil, "", fmt.Errorf("create user: %w", err)
		}
	} else if err != nil {
		return nil, "", fmt.Errorf("resolve user: %w", err)
	}

	token, err := uc.IssueToken(user, ttl)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (uc *authUsecase) IssueToken(user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
