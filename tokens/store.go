package tokens

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"content-studio/helpers"
	"content-studio/models"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists platform credentials per workspace.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = helpers.DiscardLogger()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

type UpsertInput struct {
	WorkspaceID  string
	Platform     models.Platform
	AccountName  string
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// GetValidToken returns the workspace's active account for platform. It never
// refreshes: an expired token is reported as TokenExpired.
func (s *Store) GetValidToken(ctx context.Context, workspaceID string, platform models.Platform) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND platform = ? AND is_active = ?", workspaceID, platform, true).
		Order("updated_at DESC").
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, helpers.NewError(helpers.KindNoActiveAccount, "no active %s account connected", platform).
			WithPlatform(string(platform))
	}
	if err != nil {
		return nil, helpers.Internal(err, "load social account")
	}
	if account.Expired(s.now()) {
		return nil, helpers.NewError(helpers.KindTokenExpired, "%s access token expired, reconnect required", platform).
			WithPlatform(string(platform)).
			WithContext("account_id", account.ID)
	}
	return &account, nil
}

// Upsert stores credentials for (workspace, platform, account name). An
// existing row, active or not, is updated in place and reactivated.
func (s *Store) Upsert(ctx context.Context, in UpsertInput) (*models.SocialAccount, error) {
	in.AccountName = strings.TrimSpace(in.AccountName)
	switch {
	case !in.Platform.Valid():
		return nil, helpers.Validation("unsupported platform %q", in.Platform)
	case in.WorkspaceID == "" || in.AccountName == "":
		return nil, helpers.Validation("workspace and account name are required")
	case in.AccessToken == "":
		return nil, helpers.Validation("access token is required")
	}

	var account models.SocialAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("workspace_id = ? AND platform = ? AND account_name = ?", in.WorkspaceID, in.Platform, in.AccountName).
			Take(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = models.SocialAccount{
				WorkspaceID:  in.WorkspaceID,
				Platform:     in.Platform,
				AccountName:  in.AccountName,
				AccountID:    in.AccountID,
				AccessToken:  in.AccessToken,
				RefreshToken: in.RefreshToken,
				ExpiresAt:    in.ExpiresAt,
				IsActive:     true,
				Version:      1,
			}
			return errors.Wrap(tx.Create(&account).Error, "insert social account")
		}
		if err != nil {
			return errors.Wrap(err, "lock social account")
		}

		updates := map[string]interface{}{
			"access_token": in.AccessToken,
			"expires_at":   in.ExpiresAt,
			"is_active":    true,
			"version":      account.Version + 1,
			"updated_at":   s.now(),
		}
		if in.RefreshToken != "" {
			updates["refresh_token"] = in.RefreshToken
		}
		if in.AccountID != "" {
			updates["account_id"] = in.AccountID
		}
		if err := tx.Model(&account).Updates(updates).Error; err != nil {
			return errors.Wrap(err, "update social account")
		}
		return tx.Take(&account, "id = ?", account.ID).Error
	})
	if err != nil {
		return nil, helpers.Internal(err, "save social account")
	}

	s.logger.Info("Social account saved", "account_id", account.ID, "workspace_id", account.WorkspaceID, "platform", account.Platform)
	return &account, nil
}

func (s *Store) Get(ctx context.Context, workspaceID, accountID string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", accountID, workspaceID).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, helpers.NotFound("social account %s not found", accountID)
	}
	if err != nil {
		return nil, helpers.Internal(err, "load social account")
	}
	return &account, nil
}

// List returns the workspace's active accounts.
func (s *Store) List(ctx context.Context, workspaceID string) ([]models.SocialAccount, error) {
	accounts := []models.SocialAccount{}
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("platform ASC, account_name ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, helpers.Internal(err, "list social accounts")
	}
	return accounts, nil
}

// Deactivate soft-deletes an account. The version bump makes any refresh
// that read the row earlier lose its compare-and-swap.
func (s *Store) Deactivate(ctx context.Context, workspaceID, accountID string) error {
	res := s.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("id = ? AND workspace_id = ?", accountID, workspaceID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return helpers.Internal(res.Error, "deactivate social account")
	}
	if res.RowsAffected == 0 {
		return helpers.NotFound("social account %s not found", accountID)
	}
	s.logger.Info("Social account disconnected", "account_id", accountID, "workspace_id", workspaceID)
	return nil
}

// UpdateToken writes a refreshed token only if the row is still active and
// has the version the caller read. A lost race returns StaleStatus.
func (s *Store) UpdateToken(ctx context.Context, account *models.SocialAccount, token *oauth2.Token) (*models.SocialAccount, error) {
	updates := map[string]interface{}{
		"access_token": token.AccessToken,
		"expires_at":   expiryOf(token),
		"version":      account.Version + 1,
		"updated_at":   s.now(),
	}
	if token.RefreshToken != "" {
		updates["refresh_token"] = token.RefreshToken
	}

	res := s.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("id = ? AND version = ? AND is_active = ?", account.ID, account.Version, true).
		Updates(updates)
	if res.Error != nil {
		return nil, helpers.Internal(res.Error, "store refreshed token")
	}
	if res.RowsAffected == 0 {
		return nil, helpers.NewError(helpers.KindStaleStatus, "account credentials changed concurrently, retry the refresh").
			WithPlatform(string(account.Platform))
	}

	var updated models.SocialAccount
	if err := s.db.WithContext(ctx).Take(&updated, "id = ?", account.ID).Error; err != nil {
		return nil, helpers.Internal(err, "reload social account")
	}
	return &updated, nil
}

func expiryOf(token *oauth2.Token) *time.Time {
	if token.Expiry.IsZero() {
		return nil
	}
	expiry := token.Expiry
	return &expiry
}
