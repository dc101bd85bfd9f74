package service

import (
	"context"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"
	"estancopro/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	CreateUser(ctx context.Context, username, name, password, role string) (*model.User, error)
}

type authService struct {
	users     repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(users repository.UserRepository, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{users: users, jwtSecret: []byte(jwtSecret), tokenTTL: tokenTTL}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		// Same message for unknown user and bad password.
		return nil, apierror.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apierror.Unauthorized("invalid credentials")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"role":     user.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, apierror.New("failed to sign token")
	}

	return &dto.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		Role:        user.Role,
		Name:        user.Name,
	}, nil
}

func (s *authService) CreateUser(ctx context.Context, username, name, password, role string) (*model.User, error) {
	switch role {
	case model.RoleCashier, model.RoleSupervisor, model.RoleAdmin:
	default:
		return nil, apierror.Validation("role must be cashier, supervisor or admin")
	}
	if len(password) < 8 {
		return nil, apierror.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
