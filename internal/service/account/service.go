package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/storage"
)

const passwordMin = 6

// Service owns the session's login state. The bearer token lives in the
// session store under storage.KeyToken; everything else is the backend's.
type Service struct {
	client *backend.Client
	store  storage.Store
	logger *zap.Logger
}

func New(client *backend.Client, store storage.Store, logger *zap.Logger) *Service {
	return &Service{client: client, store: store, logger: logging.OrNop(logger)}
}

type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Register creates the account and logs the session in with the issued token.
func (s *Service) Register(ctx context.Context, session string, in RegisterInput) (domain.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return domain.User{}, domain.Invalid("email required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, domain.Invalid("name required")
	}
	if err := validatePassword(in.Password, in.ConfirmPassword); err != nil {
		return domain.User{}, err
	}
	res, err := s.client.Auth().Register(ctx, backend.RegisterRequest{
		Email:    email,
		Password: in.Password,
		Name:     name,
		Phone:    strings.TrimSpace(in.Phone),
	})
	if err != nil {
		return domain.User{}, err
	}
	if err := s.remember(ctx, session, res.Token); err != nil {
		return domain.User{}, err
	}
	return res.User, nil
}

// Login exchanges credentials for a token and returns the loaded profile.
func (s *Service) Login(ctx context.Context, session, email, password string) (domain.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Profile{}, domain.Invalid("email and password required")
	}
	res, err := s.client.Auth().Login(ctx, backend.Credentials{Email: email, Password: password})
	if err != nil {
		return domain.Profile{}, err
	}
	if err := s.remember(ctx, session, res.Token); err != nil {
		return domain.Profile{}, err
	}
	return s.Profile(ctx, session)
}

// Logout forgets the token. The cart is left alone.
func (s *Service) Logout(ctx context.Context, session string) error {
	return storage.Bind(s.store, session).Delete(ctx, storage.KeyToken)
}

// LoggedIn reports whether the session holds a token.
func (s *Service) LoggedIn(ctx context.Context, session string) (bool, error) {
	token, err := storage.Bind(s.store, session).Token(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// Profile loads the user with their addresses and orders. A token the
// backend rejects is dropped so the session reads as logged out.
func (s *Service) Profile(ctx context.Context, session string) (domain.Profile, error) {
	api, err := s.authed(ctx, session)
	if err != nil {
		return domain.Profile{}, err
	}
	user, err := api.Auth().Profile(ctx)
	if err != nil {
		if backend.StatusOf(err) == http.StatusUnauthorized {
			s.logger.Info("dropping rejected token", zap.String("session", session))
			if derr := s.Logout(ctx, session); derr != nil {
				s.logger.Warn("drop token failed", zap.String("session", session), zap.Error(derr))
			}
			return domain.Profile{}, domain.ErrUnauthenticated
		}
		return domain.Profile{}, err
	}
	addresses, err := api.Addresses().List(ctx)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load addresses: %w", err)
	}
	orders, err := api.Orders().Mine(ctx)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load orders: %w", err)
	}
	return domain.Profile{User: user, Addresses: addresses, Orders: orders}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, session string, in backend.ProfileUpdate) (domain.User, error) {
	api, err := s.authed(ctx, session)
	if err != nil {
		return domain.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	return api.Auth().UpdateProfile(ctx, in)
}

// RequestPasswordReset asks the backend to mail a reset link.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Invalid("email required")
	}
	return s.client.PasswordReset().Request(ctx, email)
}

func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return domain.Invalid("invalid or missing reset token")
	}
	return s.client.PasswordReset().Validate(ctx, token)
}

// ResetPassword checks the new password locally before the backend sees it.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if strings.TrimSpace(token) == "" {
		return domain.Invalid("invalid or missing reset token")
	}
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	return s.client.PasswordReset().Reset(ctx, token, password)
}

func (s *Service) remember(ctx context.Context, session, token string) error {
	if token == "" {
		return errors.New("backend issued an empty token")
	}
	if err := storage.Bind(s.store, session).Set(ctx, storage.KeyToken, token, 0); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (s *Service) authed(ctx context.Context, session string) (*backend.Client, error) {
	bound := storage.Bind(s.store, session)
	token, err := bound.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.client.As(bound), nil
}

func validatePassword(password, confirm string) error {
	if len(password) < passwordMin {
		return domain.Invalid(fmt.Sprintf("password must be at least %d characters", passwordMin))
	}
	if password != confirm {
		return domain.Invalid("passwords do not match")
	}
	return nil
}
