package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/ident"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the payload of a dealer session token
type Claims struct {
	DealerID string `json:"dealer_id"`
	jwt.RegisteredClaims
}

// AuthService signs dealers in and issues tokens
type AuthService struct {
	store   DealerStore
	coord   Coordinator
	lockTTL time.Duration
	secret  []byte
	ttl     time.Duration
	cost    int
	now     func() time.Time
	logger  *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(store DealerStore, coord Coordinator, cfg config.AuthConfig, redisCfg config.RedisConfig) *AuthService {
	if coord == nil {
		coord = NewLocalCoordinator()
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		store:   store,
		coord:   coord,
		lockTTL: redisCfg.LockTTL,
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TokenTTL,
		cost:    cost,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Phone        string `json:"phone"`
	BusinessName string `json:"business_name"`
}

// AuthResult is returned by signin and signup
type AuthResult struct {
	Dealer    *models.Dealer `json:"dealer"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Signin checks the password against the stored bcrypt hash.
func (s *AuthService) Signin(ctx context.Context, req *SigninRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	dealer, err := s.store.GetDealerByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(dealer.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("Dealer signed in", zap.String("dealer_id", dealer.DealerID))
	return s.issue(dealer)
}

// Signup creates a dealer account.
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	dealer := &models.Dealer{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		BusinessName: req.BusinessName,
		PasswordHash: string(hash),
	}
	err = s.coord.WithLock(ctx, idLock(ident.PrefixDealer, ""), s.lockTTL, func() error {
		return s.store.CreateDealer(ctx, dealer)
	})
	if err != nil {
		return nil, translate(err, nil)
	}

	s.logger.Info("Dealer registered", zap.String("dealer_id", dealer.DealerID))
	return s.issue(dealer)
}

func (s *AuthService) issue(dealer *models.Dealer) (*AuthResult, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DealerID: dealer.DealerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   dealer.DealerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &AuthResult{Dealer: dealer, Token: signed, ExpiresAt: expires}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseToken validates a token and returns the dealer it was issued to.
func (s *AuthService) ParseToken(raw string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if claims.DealerID == "" {
		return "", fmt.Errorf("%w: token has no dealer", ErrInvalidCredentials)
	}
	return claims.DealerID, nil
}
