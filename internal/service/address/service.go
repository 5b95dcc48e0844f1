package address

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/storage"
)

// Service keeps exactly one default address per user whenever the user has
// any addresses at all. The backend does not enforce this, so every mutation
// here reconciles the flags afterwards.
type Service struct {
	client *backend.Client
	store  storage.Store
	logger *zap.Logger
}

func New(client *backend.Client, store storage.Store, logger *zap.Logger) *Service {
	return &Service{client: client, store: store, logger: logging.OrNop(logger)}
}

func (s *Service) List(ctx context.Context, session string) ([]domain.Address, error) {
	api, err := s.authed(ctx, session)
	if err != nil {
		return nil, err
	}
	return api.Addresses().List(ctx)
}

// Create adds an address. The first address always becomes the default.
func (s *Service) Create(ctx context.Context, session string, in domain.AddressInput) (domain.Address, error) {
	api, err := s.authed(ctx, session)
	if err != nil {
		return domain.Address{}, err
	}
	in, err = normalize(in)
	if err != nil {
		return domain.Address{}, err
	}
	existing, err := api.Addresses().List(ctx)
	if err != nil {
		return domain.Address{}, err
	}
	if len(existing) == 0 {
		in.IsDefault = true
	}
	created, err := api.Addresses().Create(ctx, in)
	if err != nil {
		return domain.Address{}, err
	}
	if created.IsDefault {
		if err := s.clearOthers(ctx, api, existing, created.ID); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Update rewrites an address. Taking the flag off the current default hands
// it to the first other address; a lone address stays default.
func (s *Service) Update(ctx context.Context, session string, id int64, in domain.AddressInput) (domain.Address, error) {
	api, err := s.authed(ctx, session)
	if err != nil {
		return domain.Address{}, err
	}
	in, err = normalize(in)
	if err != nil {
		return domain.Address{}, err
	}
	existing, err := api.Addresses().List(ctx)
	if err != nil {
		return domain.Address{}, err
	}
	current, ok := find(existing, id)
	if !ok {
		return domain.Address{}, domain.ErrNotFound
	}
	others := exclude(existing, id)
	if current.IsDefault && !in.IsDefault && len(others) == 0 {
		in.IsDefault = true
	}
	updated, err := api.Addresses().Update(ctx, id, in)
	if err != nil {
		return domain.Address{}, err
	}
	switch {
	case updated.IsDefault:
		err = s.clearOthers(ctx, api, existing, id)
	case current.IsDefault:
		err = s.promote(ctx, api, others)
	}
	return updated, err
}

// SetDefault moves the default flag to id.
func (s *Service) SetDefault(ctx context.Context, session string, id int64) (domain.Address, error) {
	api, err := s.authed(ctx, session)
	if err != nil {
		return domain.Address{}, err
	}
	existing, err := api.Addresses().List(ctx)
	if err != nil {
		return domain.Address{}, err
	}
	current, ok := find(existing, id)
	if !ok {
		return domain.Address{}, domain.ErrNotFound
	}
	if current.IsDefault {
		return current, s.clearOthers(ctx, api, existing, id)
	}
	in := inputOf(current)
	in.IsDefault = true
	updated, err := api.Addresses().Update(ctx, id, in)
	if err != nil {
		return domain.Address{}, err
	}
	return updated, s.clearOthers(ctx, api, existing, id)
}

// Delete removes an address; deleting the default promotes the first remaining one.
func (s *Service) Delete(ctx context.Context, session string, id int64) error {
	api, err := s.authed(ctx, session)
	if err != nil {
		return err
	}
	existing, err := api.Addresses().List(ctx)
	if err != nil {
		return err
	}
	current, ok := find(existing, id)
	if !ok {
		return domain.ErrNotFound
	}
	if err := api.Addresses().Delete(ctx, id); err != nil {
		return err
	}
	if current.IsDefault {
		return s.promote(ctx, api, exclude(existing, id))
	}
	return nil
}

func (s *Service) clearOthers(ctx context.Context, api *backend.Client, existing []domain.Address, keep int64) error {
	for _, a := range existing {
		if a.ID == keep || !a.IsDefault {
			continue
		}
		in := inputOf(a)
		in.IsDefault = false
		if _, err := api.Addresses().Update(ctx, a.ID, in); err != nil {
			return fmt.Errorf("clear default on address %d: %w", a.ID, err)
		}
		s.logger.Debug("cleared default address", zap.Int64("address_id", a.ID))
	}
	return nil
}

func (s *Service) promote(ctx context.Context, api *backend.Client, remaining []domain.Address) error {
	if len(remaining) == 0 {
		return nil
	}
	in := inputOf(remaining[0])
	in.IsDefault = true
	if _, err := api.Addresses().Update(ctx, remaining[0].ID, in); err != nil {
		return fmt.Errorf("promote address %d: %w", remaining[0].ID, err)
	}
	return s.clearOthers(ctx, api, remaining, remaining[0].ID)
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

func normalize(in domain.AddressInput) (domain.AddressInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Street = strings.TrimSpace(in.Street)
	in.City = strings.TrimSpace(in.City)
	in.ZipCode = strings.TrimSpace(in.ZipCode)
	in.Phone = strings.TrimSpace(in.Phone)
	switch {
	case in.Name == "":
		return in, domain.Invalid("address name required")
	case in.Street == "":
		return in, domain.Invalid("street required")
	case in.City == "":
		return in, domain.Invalid("city required")
	case in.Phone == "":
		return in, domain.Invalid("phone required")
	}
	return in, nil
}

func inputOf(a domain.Address) domain.AddressInput {
	return domain.AddressInput{
		Name:      a.Name,
		Street:    a.Street,
		City:      a.City,
		ZipCode:   a.ZipCode,
		Phone:     a.Phone,
		IsDefault: a.IsDefault,
	}
}

func find(list []domain.Address, id int64) (domain.Address, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Address{}, false
}

func exclude(list []domain.Address, id int64) []domain.Address {
	out := make([]domain.Address, 0, len(list))
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
