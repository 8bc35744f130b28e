package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
)

const issuer = "go-talk"

type Service struct {
	repo      *Repository
	jwtSecret []byte
	tokenTTL  time.Duration
}

type MyJWTClaims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(secret),
		tokenTTL:  tokenTTL,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Password: string(hashedPwd),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		// Same answer for unknown user and wrong password.
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
	}

	return s.issue(u)
}

func (s *Service) issue(u *User) (*LoginResponse, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MyJWTClaims{
		ID:       u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	ss, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          u.ID,
		Username:    u.Username,
	}, nil
}

// ValidateToken returns the user id and username carried by a valid token.
func (s *Service) ValidateToken(tokenString string) (string, string, error) {
	claims := &MyJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))

	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}

	return claims.ID, claims.Username, nil
}

func (s *Service) Me(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) SearchUsers(ctx context.Context, callerID, query string) ([]User, error) {
	if query == "" {
		return []User{}, nil
	}
	return s.repo.SearchUsers(ctx, query, callerID)
}

func (s *Service) SendFriendRequest(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("%w: cannot befriend yourself", apperr.ErrValidation)
	}
	if _, err := s.repo.GetUserByID(ctx, toID); err != nil {
		return err
	}
	return s.repo.CreateFriendRequest(ctx, fromID, toID)
}

// AcceptFriendRequest accepts the request fromID sent to callerID.
func (s *Service) AcceptFriendRequest(ctx context.Context, callerID, fromID string) error {
	return s.repo.AcceptFriendRequest(ctx, fromID, callerID)
}

func (s *Service) Friends(ctx context.Context, id string) ([]User, error) {
	return s.repo.Friends(ctx, id)
}
