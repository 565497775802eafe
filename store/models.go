// Package store is the relational settings store behind configuration
// resolution: users (role and plan), per-user provider preferences and
// credentials, the organization credential pool, and each project's stored
// per-kind model configuration.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/filmforge/types"
)

// Roles and plan tiers read by the resolver's organization-credential tier.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	PlanFree = "free"
)

// User carries the role and subscription plan the resolver needs. The full
// account record lives outside this subsystem.
type User struct {
	ID        string `gorm:"primaryKey;size:64"`
	Role      string `gorm:"size:32;default:user"`
	Plan      string `gorm:"size:32;default:free"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Premium reports whether the user may draw from the organization
// credential pool.
func (u *User) Premium() bool {
	return u.Role == RoleAdmin || (u.Plan != "" && u.Plan != PlanFree)
}

// UserSettings stores one user's provider preferences and self-hosted
// endpoints. One row per user, created lazily on first write.
type UserSettings struct {
	UserID string `gorm:"primaryKey;size:64"`

	ImageProvider  string `gorm:"size:64"`
	VideoProvider  string `gorm:"size:64"`
	SpeechProvider string `gorm:"size:64"`
	MusicProvider  string `gorm:"size:64"`
	TextProvider   string `gorm:"size:64"`

	ModalImageEndpoint     string `gorm:"size:512"`
	ModalImageEditEndpoint string `gorm:"size:512"`
	ModalVideoEndpoint     string `gorm:"size:512"`
	ModalSpeechEndpoint    string `gorm:"size:512"`
	ModalMusicEndpoint     string `gorm:"size:512"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Provider returns the stored preference for a kind, "" when unset.
func (s *UserSettings) Provider(kind types.Kind) string {
	switch kind {
	case types.KindImage:
		return s.ImageProvider
	case types.KindVideo:
		return s.VideoProvider
	case types.KindSpeech:
		return s.SpeechProvider
	case types.KindMusic:
		return s.MusicProvider
	case types.KindText:
		return s.TextProvider
	}
	return ""
}

// Endpoint returns the stored self-hosted endpoint for a kind, "" when unset.
func (s *UserSettings) Endpoint(kind types.Kind) string {
	switch kind {
	case types.KindImage:
		return s.ModalImageEndpoint
	case types.KindVideo:
		return s.ModalVideoEndpoint
	case types.KindSpeech:
		return s.ModalSpeechEndpoint
	case types.KindMusic:
		return s.ModalMusicEndpoint
	}
	return ""
}

// EditEndpoint returns the stored image-edit endpoint. Image edits run a
// separate deployment, so the slot is independent of the image slot.
func (s *UserSettings) EditEndpoint() string {
	return s.ModalImageEditEndpoint
}

// UserCredential is one user's personal API key for one provider.
type UserCredential struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;uniqueIndex:idx_user_provider"`
	Provider  string `gorm:"size:64;uniqueIndex:idx_user_provider"`
	APIKey    string `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrgCredential is one entry of the admin-managed organization credential
// pool shared by premium users.
type OrgCredential struct {
	Provider  string `gorm:"primaryKey;size:64"`
	APIKey    string `gorm:"size:512"`
	UpdatedAt time.Time
}

// Project stores the per-kind model configuration a project owner chose,
// as a JSON blob keyed by generation kind.
type Project struct {
	ID          string `gorm:"primaryKey;size:64"`
	OwnerID     string `gorm:"size:64;index"`
	Name        string `gorm:"size:255"`
	ModelConfig string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// KindModelConfig is one kind's entry in a project's model configuration.
type KindModelConfig struct {
	Provider          string `json:"provider"`
	Model             string `json:"model,omitempty"`
	ModalEndpoint     string `json:"modalEndpoint,omitempty"`
	ModalEditEndpoint string `json:"modalEditEndpoint,omitempty"`
}

// ModelConfigFor parses the project's stored configuration for one kind.
// Returns nil when the project has no entry for that kind.
func (p *Project) ModelConfigFor(kind types.Kind) (*KindModelConfig, error) {
	if p == nil || p.ModelConfig == "" {
		return nil, nil
	}
	var blob map[types.Kind]KindModelConfig
	if err := json.Unmarshal([]byte(p.ModelConfig), &blob); err != nil {
		return nil, fmt.Errorf("parse project %s model config: %w", p.ID, err)
	}
	cfg, ok := blob[kind]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// SetModelConfig replaces the project's stored configuration blob.
func (p *Project) SetModelConfig(cfg map[types.Kind]KindModelConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode project model config: %w", err)
	}
	p.ModelConfig = string(data)
	return nil
}
