package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-labs/parley/internal/domain"
)

const apiKeyPrefix = "ply_"

type TenantRepositoryInterface interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetByKey(ctx context.Context, key domain.TenantKey) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	Delete(ctx context.Context, id string) error
}

type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// AuthService manages tenants and their API keys. Keys are stored only
// as sha256 hashes; the plaintext token exists exactly once, at creation.
type AuthService struct {
	tenantRepo TenantRepositoryInterface
	keyRepo    APIKeyRepositoryInterface
	txRunner   TxRunner
	uuidGen    UUIDGenerator
}

func NewAuthService(tenantRepo TenantRepositoryInterface, keyRepo APIKeyRepositoryInterface, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		tenantRepo: tenantRepo,
		keyRepo:    keyRepo,
		uuidGen:    uuidGen,
	}
}

func NewAuthServiceWithTx(tenantRepo TenantRepositoryInterface, keyRepo APIKeyRepositoryInterface, txRunner TxRunner, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		tenantRepo: tenantRepo,
		keyRepo:    keyRepo,
		txRunner:   txRunner,
		uuidGen:    uuidGen,
	}
}

func (s *AuthService) CreateTenant(ctx context.Context, key domain.TenantKey, name string) (*domain.Tenant, error) {
	if !domain.ValidTenantKey(key) {
		return nil, domain.ErrInvalidTenantKey
	}
	if name == "" {
		name = string(key)
	}

	tenant := domain.NewTenant(s.uuidGen.NewString(), key, name, time.Now().UTC())
	if err := domain.ValidateTenant(tenant); err != nil {
		return nil, err
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}

	return tenant, nil
}

// CreateTenantResult carries the one-time plaintext token alongside the
// created records.
type CreateTenantResult struct {
	Tenant *domain.Tenant
	APIKey *domain.APIKey
	Token  string
}

// CreateTenantWithKey creates a tenant together with its first API key.
// With a tx runner both records commit atomically.
func (s *AuthService) CreateTenantWithKey(ctx context.Context, key domain.TenantKey, name, keyName string) (*CreateTenantResult, error) {
	if !domain.ValidTenantKey(key) {
		return nil, domain.ErrInvalidTenantKey
	}
	if name == "" {
		name = string(key)
	}
	if keyName == "" {
		keyName = "default"
	}

	token, err := generateAPIToken()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	now := time.Now().UTC()
	tenant := domain.NewTenant(s.uuidGen.NewString(), key, name, now)
	if err := domain.ValidateTenant(tenant); err != nil {
		return nil, err
	}

	apiKey := domain.NewAPIKey(s.uuidGen.NewString(), tenant.ID, keyName, hashToken(token), now, nil)
	if err := domain.ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}

	if s.txRunner != nil {
		err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Tenants().Create(ctx, tenant); err != nil {
				return err
			}
			return repos.APIKeys().Create(ctx, apiKey)
		})
	} else {
		if err = s.tenantRepo.Create(ctx, tenant); err == nil {
			err = s.keyRepo.Create(ctx, apiKey)
		}
	}
	if err != nil {
		return nil, err
	}

	return &CreateTenantResult{Tenant: tenant, APIKey: apiKey, Token: token}, nil
}

func (s *AuthService) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	if id == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *AuthService) GetTenantByKey(ctx context.Context, key domain.TenantKey) (*domain.Tenant, error) {
	if key == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant key is required")
	}
	return s.tenantRepo.GetByKey(ctx, key)
}

func (s *AuthService) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	return s.tenantRepo.List(ctx)
}

func (s *AuthService) CreateAPIKey(ctx context.Context, tenantID, name string) (string, error) {
	if tenantID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	_, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key := domain.NewAPIKey(s.uuidGen.NewString(), tenantID, name, hashToken(token), time.Now().UTC(), nil)
	if err := domain.ValidateAPIKey(key); err != nil {
		return "", err
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	return token, nil
}

// CreateAPIKeyWithToken registers a caller-supplied token. Used for
// bootstrap, where the key must be known before the server first starts.
func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, tenantID, name, token string) error {
	if tenantID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected ply_<64 hex chars>)")
	}

	_, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	key := domain.NewAPIKey(s.uuidGen.NewString(), tenantID, name, hashToken(token), time.Now().UTC(), nil)
	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keyRepo.Create(ctx, key)
}

// ValidateAPIKey resolves a bearer token to its tenant. Unknown and
// malformed tokens both come back as ErrInvalidAPIKey so callers cannot
// distinguish them.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (*domain.Tenant, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIKey
	}

	hash := hashToken(token)

	key, err := s.keyRepo.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}

	if key.IsRevoked() {
		return nil, domain.ErrAPIKeyRevoked
	}

	return s.tenantRepo.GetByID(ctx, key.TenantID)
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}

	return s.keyRepo.GetByTenantID(ctx, tenantID)
}

// EnsureBootstrap creates the configured initial tenant and API key if
// they do not exist yet. Safe to run on every startup.
func (s *AuthService) EnsureBootstrap(ctx context.Context, tenantKey domain.TenantKey, token string) error {
	if tenantKey == "" {
		return nil
	}

	tenant, err := s.tenantRepo.GetByKey(ctx, tenantKey)
	if errors.Is(err, domain.ErrTenantNotFound) {
		tenant, err = s.CreateTenant(ctx, tenantKey, string(tenantKey))
		if err != nil {
			return err
		}
		log.Info().Str("tenant", string(tenantKey)).Msg("bootstrap tenant created")
	} else if err != nil {
		return err
	}

	if token == "" {
		return nil
	}

	_, err = s.keyRepo.GetByHash(ctx, hashToken(token))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAPIKeyNotFound) {
		return err
	}

	if err := s.CreateAPIKeyWithToken(ctx, tenant.ID, "bootstrap", token); err != nil {
		return err
	}
	log.Info().Str("tenant", string(tenantKey)).Msg("bootstrap API key registered")
	return nil
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
