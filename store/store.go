package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/filmforge/types"
)

// Store wraps the relational settings database. Reads are never cached:
// every resolution re-reads so tier changes take effect on the next call.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL and migrates the schema.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}
	s, err := New(db, logger)
	if err != nil {
		return nil, err
	}
	if err := s.TunePool(DefaultPoolConfig()); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm connection (tests pass an in-memory sqlite)
// and migrates the schema.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the settings tables.
func (s *Store) AutoMigrate() error {
	err := s.db.AutoMigrate(
		&User{},
		&UserSettings{},
		&UserCredential{},
		&OrgCredential{},
		&Project{},
	)
	if err != nil {
		return fmt.Errorf("migrate settings schema: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for collaborators owning other tables.
func (s *Store) DB() *gorm.DB { return s.db }

// GetUser loads a user's role and plan. Missing users resolve as free-tier.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return &u, nil
}

// GetSettings loads a user's settings row, nil when none exists yet.
func (s *Store) GetSettings(ctx context.Context, userID string) (*UserSettings, error) {
	var settings UserSettings
	err := s.db.WithContext(ctx).First(&settings, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings for %s: %w", userID, err)
	}
	return &settings, nil
}

// GetCredential returns the user's personal key for a provider, "" when unset.
func (s *Store) GetCredential(ctx context.Context, userID, provider string) (string, error) {
	var cred UserCredential
	err := s.db.WithContext(ctx).
		First(&cred, "user_id = ? AND provider = ?", userID, provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load credential %s/%s: %w", userID, provider, err)
	}
	return cred.APIKey, nil
}

// GetOrgCredential returns the organization pool key for a provider, ""
// when the pool has none.
func (s *Store) GetOrgCredential(ctx context.Context, provider string) (string, error) {
	var cred OrgCredential
	err := s.db.WithContext(ctx).First(&cred, "provider = ?", provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load org credential for %s: %w", provider, err)
	}
	return cred.APIKey, nil
}

// SetOrgCredential upserts one provider's key in the organization pool.
func (s *Store) SetOrgCredential(ctx context.Context, provider, key string) error {
	cred := OrgCredential{Provider: provider, APIKey: key}
	err := s.db.WithContext(ctx).Save(&cred).Error
	if err != nil {
		return fmt.Errorf("save org credential for %s: %w", provider, err)
	}
	return nil
}

// GetProject loads a project, nil when it does not exist.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}
	return &p, nil
}

// UpdateProviderPreference stores the user's chosen provider for one kind,
// creating the settings row when absent.
func (s *Store) UpdateProviderPreference(ctx context.Context, userID string, kind types.Kind, provider string) error {
	column, ok := preferenceColumn(kind)
	if !ok {
		return types.NewValidationError(fmt.Sprintf("unknown generation kind %q", kind))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSettingsRow(tx, userID); err != nil {
			return err
		}
		err := tx.Model(&UserSettings{}).
			Where("user_id = ?", userID).
			Update(column, provider).Error
		if err != nil {
			return fmt.Errorf("update %s preference for %s: %w", kind, userID, err)
		}
		s.logger.Info("provider preference updated",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.String("provider", provider))
		return nil
	})
}

// UpsertAPIKey stores the user's personal key for a provider. Calling it
// for a user with no settings record creates one; calling it again updates
// the same credential row rather than duplicating it.
func (s *Store) UpsertAPIKey(ctx context.Context, userID, provider, key string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSettingsRow(tx, userID); err != nil {
			return err
		}

		var cred UserCredential
		err := tx.First(&cred, "user_id = ? AND provider = ?", userID, provider).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			cred = UserCredential{UserID: userID, Provider: provider, APIKey: key}
			if err := tx.Create(&cred).Error; err != nil {
				return fmt.Errorf("create credential %s/%s: %w", userID, provider, err)
			}
		case err != nil:
			return fmt.Errorf("load credential %s/%s: %w", userID, provider, err)
		default:
			err := tx.Model(&cred).Update("api_key", key).Error
			if err != nil {
				return fmt.Errorf("update credential %s/%s: %w", userID, provider, err)
			}
		}

		s.logger.Info("api key upserted",
			zap.String("user_id", userID),
			zap.String("provider", provider))
		return nil
	})
}

// UpdateModalEndpoint stores the user's self-hosted endpoint for one kind.
func (s *Store) UpdateModalEndpoint(ctx context.Context, userID string, kind types.Kind, endpoint string) error {
	column, ok := endpointColumn(kind)
	if !ok {
		return types.NewValidationError(fmt.Sprintf("kind %q has no endpoint slot", kind))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSettingsRow(tx, userID); err != nil {
			return err
		}
		err := tx.Model(&UserSettings{}).
			Where("user_id = ?", userID).
			Update(column, endpoint).Error
		if err != nil {
			return fmt.Errorf("update %s endpoint for %s: %w", kind, userID, err)
		}
		return nil
	})
}

// UpdateModalEditEndpoint stores the user's self-hosted image-edit
// endpoint. Idempotent upsert like the per-kind slots.
func (s *Store) UpdateModalEditEndpoint(ctx context.Context, userID, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSettingsRow(tx, userID); err != nil {
			return err
		}
		err := tx.Model(&UserSettings{}).
			Where("user_id = ?", userID).
			Update("modal_image_edit_endpoint", endpoint).Error
		if err != nil {
			return fmt.Errorf("update image-edit endpoint for %s: %w", userID, err)
		}
		return nil
	})
}

func ensureSettingsRow(tx *gorm.DB, userID string) error {
	var count int64
	if err := tx.Model(&UserSettings{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("check settings row for %s: %w", userID, err)
	}
	if count > 0 {
		return nil
	}
	if err := tx.Create(&UserSettings{UserID: userID}).Error; err != nil {
		return fmt.Errorf("create settings row for %s: %w", userID, err)
	}
	return nil
}

func preferenceColumn(kind types.Kind) (string, bool) {
	switch kind {
	case types.KindImage:
		return "image_provider", true
	case types.KindVideo:
		return "video_provider", true
	case types.KindSpeech:
		return "speech_provider", true
	case types.KindMusic:
		return "music_provider", true
	case types.KindText:
		return "text_provider", true
	}
	return "", false
}

func endpointColumn(kind types.Kind) (string, bool) {
	switch kind {
	case types.KindImage:
		return "modal_image_endpoint", true
	case types.KindVideo:
		return "modal_video_endpoint", true
	case types.KindSpeech:
		return "modal_speech_endpoint", true
	case types.KindMusic:
		return "modal_music_endpoint", true
	}
	return "", false
}
