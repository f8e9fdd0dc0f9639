package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beamup-io/beamup/internal/common"
	"github.com/beamup-io/beamup/internal/platform"
	"github.com/beamup-io/beamup/pkg/config"
	"github.com/beamup-io/beamup/pkg/types"
	"github.com/beamup-io/beamup/pkg/utils"
)

// Connector is the slice of the platform client the auth flow needs
type Connector interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*platform.Token, error)
	GetAccount(ctx context.Context, token string) (*platform.Account, error)
}

// StateStore holds one-time OAuth state nonces. common.Cache satisfies it.
type StateStore interface {
	SetString(ctx context.Context, key, value string, expiration time.Duration) error
	TakeString(ctx context.Context, key string) (string, error)
}

// Service handles the OAuth connect flow and connected-account storage.
// Tokens are stored as issued; Beamup does not refresh or revoke them.
type Service struct {
	db        *common.Database
	cache     StateStore
	connector Connector
	config    *config.AuthConfig
}

// NewService creates a new auth service
func NewService(db *common.Database, cache StateStore, connector Connector, config *config.AuthConfig) *Service {
	return &Service{
		db:        db,
		cache:     cache,
		connector: connector,
		config:    config,
	}
}

// BeginConnect starts the OAuth flow: it issues a one-time state nonce and
// returns the platform consent URL the browser should be redirected to
func (s *Service) BeginConnect(ctx context.Context) (string, error) {
	state, err := utils.GenerateStateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	if err := s.cache.SetString(ctx, stateKey(state), "1", s.config.StateTTL); err != nil {
		return "", fmt.Errorf("failed to store state token: %w", err)
	}

	return s.connector.AuthorizeURL(state), nil
}

// CompleteConnect finishes the OAuth flow: it validates the state nonce,
// exchanges the code for an access token, upserts the connected account and
// returns it together with a signed session token
func (s *Service) CompleteConnect(ctx context.Context, state, code string) (*types.ConnectedAccount, string, error) {
	if _, err := s.cache.TakeString(ctx, stateKey(state)); err != nil {
		return nil, "", fmt.Errorf("invalid or expired state token")
	}

	token, err := s.connector.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code: %w", err)
	}

	identity, err := s.connector.GetAccount(ctx, token.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch account identity: %w", err)
	}

	account := &types.ConnectedAccount{
		PlatformUserID: identity.ID,
		Name:           identity.Name,
		AccessToken:    token.AccessToken,
	}
	if token.ExpiresIn > 0 {
		expires := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		account.TokenExpiresAt = &expires
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "access_token", "token_expires_at", "updated_at"}),
	}).Create(account).Error; err != nil {
		return nil, "", fmt.Errorf("failed to save connected account: %w", err)
	}

	// Re-read so the returned record carries the persisted ID on upsert
	var saved types.ConnectedAccount
	if err := s.db.Where("platform_user_id = ?", identity.ID).First(&saved).Error; err != nil {
		return nil, "", fmt.Errorf("failed to load connected account: %w", err)
	}

	sessionToken, err := utils.GenerateJWT(saved.ID, s.config.SessionSecret, s.config.SessionTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	log.Info().
		Str("platform_user_id", identity.ID).
		Str("name", identity.Name).
		Msg("platform account connected")

	return &saved, sessionToken, nil
}

// ValidateSession validates a session token and returns the connected account
func (s *Service) ValidateSession(ctx context.Context, tokenString string) (*types.ConnectedAccount, error) {
	accountID, err := utils.ValidateJWT(tokenString, s.config.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	var account types.ConnectedAccount
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return &account, nil
}

// GetAccount loads a connected account by ID
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*types.ConnectedAccount, error) {
	var account types.ConnectedAccount
	if err := s.db.Where("id = ?", id).First(&account).Error; err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth_state:%s", state)
}
