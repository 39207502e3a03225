package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/inamate/diagram/internal/store"
	"github.com/inamate/diagram/internal/typeid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

const tokenTTL = 24 * time.Hour

// Directory is the part of the store that accounts read: users and the
// diagrams they belong to.
type Directory interface {
	store.Users
	ListDiagramsForUser(ctx context.Context, userID string) ([]store.Diagram, error)
}

type Service struct {
	users      Directory
	jwtSecret  []byte
	bcryptCost int
	now        func() time.Time
}

func NewService(users Directory, jwtSecret string) *Service {
	return &Service{
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: 12,
		now:        time.Now,
	}
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// User is the account payload shared by register, login and /api/me.
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"displayName"`
	Diagrams    []DiagramRef `json:"diagrams"`
}

// DiagramRef names a diagram the user can open over the websocket.
type DiagramRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner bool   `json:"owner"`
}

func (s *Service) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, store.User{
		ID:           typeid.NewUserID(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.result(ctx, u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.result(ctx, u)
}

func (s *Service) result(ctx context.Context, u store.User) (*AuthResult, error) {
	token, expiresAt, err := s.issueToken(u.ID)
	if err != nil {
		return nil, err
	}
	user, err := s.toUser(ctx, u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ValidateToken checks the signature and expiry of tokenString and returns
// its subject.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := token.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return userID, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	out, err := s.toUser(ctx, u)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) issueToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

func (s *Service) toUser(ctx context.Context, u store.User) (User, error) {
	diagrams, err := s.users.ListDiagramsForUser(ctx, u.ID)
	if err != nil {
		return User{}, fmt.Errorf("list diagrams: %w", err)
	}
	refs := make([]DiagramRef, 0, len(diagrams))
	for _, d := range diagrams {
		refs = append(refs, DiagramRef{ID: d.ID, Name: d.Name, Owner: d.OwnerID == u.ID})
	}
	return User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Diagrams: refs}, nil
}
