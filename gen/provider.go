package gen

import (
	"context"
	"time"

	"github.com/BaSui01/filmforge/types"
)

// Well-known provider names. Names are scoped within a kind; "modal" is the
// self-hosted family and resolves an endpoint URL instead of a credential.
const (
	ProviderOpenAI     = "openai"
	ProviderFlux       = "flux"
	ProviderGemini     = "gemini"
	ProviderRunway     = "runway"
	ProviderKling      = "kling"
	ProviderElevenLabs = "elevenlabs"
	ProviderSuno       = "suno"
	ProviderMiniMax    = "minimax"
	ProviderModal      = "modal"
	ProviderLocalCLI   = "local-cli"
)

// ProviderConfig is the fully resolved configuration for one generation
// call. It is constructed fresh by the resolver on every call and never
// cached: precedence inputs (project config, subscription tier, org keys)
// can change between calls.
type ProviderConfig struct {
	Kind     types.Kind `json:"kind"`
	Provider string     `json:"provider"`
	// APIKey is empty for the self-hosted family, which uses Endpoint.
	APIKey   string `json:"-"`
	Endpoint string `json:"endpoint,omitempty"`
	// EditEndpoint is the separate image-edit deployment of the
	// self-hosted family; edits run a different pipeline.
	EditEndpoint string `json:"edit_endpoint,omitempty"`
	Model        string `json:"model,omitempty"`
	// UserOwnedKey is true when the credential came from the caller's own
	// settings rather than the organization pool or the environment.
	UserOwnedKey bool          `json:"user_owned_key"`
	Timeout      time.Duration `json:"timeout,omitempty"`
}

// StorageClass describes where a response artifact lives.
type StorageClass string

const (
	StorageHosted StorageClass = "hosted" // durable URL
	StorageInline StorageClass = "inline" // data URL payload
)

// Request is the common generation request envelope. Exactly one of the
// kind-specific parameter blocks is set, matching Kind.
type Request struct {
	Kind   types.Kind `json:"kind"`
	Prompt string     `json:"prompt,omitempty"`
	Model  string     `json:"model,omitempty"`

	// Correlation ids; ProjectID additionally routes the artifact to
	// durable storage.
	UserID      string `json:"user_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	SceneID     string `json:"scene_id,omitempty"`
	CharacterID string `json:"character_id,omitempty"`

	// SettingsUserID names a delegate whose stored settings are read
	// instead of the caller's.
	SettingsUserID  string `json:"settings_user_id,omitempty"`
	Provider        string `json:"provider,omitempty"` // caller override, bypasses all lookup
	Regenerate      bool   `json:"regenerate,omitempty"`
	SkipCreditCheck bool   `json:"skip_credit_check,omitempty"`

	Image  *ImageParams  `json:"image,omitempty"`
	Video  *VideoParams  `json:"video,omitempty"`
	Speech *SpeechParams `json:"speech,omitempty"`
	Music  *MusicParams  `json:"music,omitempty"`
}

// ImageParams carries image-specific request fields.
type ImageParams struct {
	Resolution      string   `json:"resolution,omitempty"` // hd, 2k, 4k
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	Seed            int64    `json:"seed,omitempty"`
	Steps           int      `json:"steps,omitempty"`
	Guidance        float64  `json:"guidance,omitempty"`
}

// VideoParams carries video-specific request fields.
type VideoParams struct {
	SourceImage string  `json:"source_image,omitempty"` // HTTPS URL or data URL
	MotionMode  string  `json:"motion_mode,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
	FPS         int     `json:"fps,omitempty"`
}

// SpeechParams carries text-to-speech request fields.
type SpeechParams struct {
	Text            string  `json:"text"`
	Voice           string  `json:"voice,omitempty"`
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	StyleWeight     float64 `json:"style_weight,omitempty"`
	SpeakerBoost    bool    `json:"speaker_boost,omitempty"`
	OutputFormat    string  `json:"output_format,omitempty"`
	Language        string  `json:"language,omitempty"`
}

// MusicParams carries music-specific request fields.
type MusicParams struct {
	Description  string   `json:"description,omitempty"`
	Duration     float64  `json:"duration,omitempty"`
	Style        string   `json:"style,omitempty"`
	Instrumental bool     `json:"instrumental,omitempty"`
	Instruments  []string `json:"instruments,omitempty"`
}

// Response is the normalized generation result shared by all kinds.
type Response struct {
	Status  types.Status `json:"status"`
	URL     string       `json:"url,omitempty"`      // hosted artifact
	DataURL string       `json:"data_url,omitempty"` // inline payload
	Storage StorageClass `json:"storage,omitempty"`
	TaskID  string       `json:"task_id,omitempty"` // async providers only
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	CreditCost int     `json:"credit_cost,omitempty"`
	ActualCost float64 `json:"actual_cost,omitempty"` // estimated real-world spend, USD

	Video    *VideoResult   `json:"video,omitempty"`
	Audio    *AudioResult   `json:"audio,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VideoResult mirrors the video request extension on the response side.
type VideoResult struct {
	Duration float64 `json:"duration,omitempty"`
	FPS      int     `json:"fps,omitempty"`
}

// AudioResult carries audio extensions for TTS and music responses.
type AudioResult struct {
	Duration float64 `json:"duration,omitempty"`
	Format   string  `json:"format,omitempty"`
}

// TaskStatus is the transient polling snapshot for an async task. It is
// never persisted; it exists only inside the poll loop.
type TaskStatus struct {
	Status   types.Status `json:"status"`
	Progress float64      `json:"progress,omitempty"` // 0..1 when the vendor reports it
	Message  string       `json:"message,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Provider is the contract every vendor integration implements,
// synchronous or not. Generate is the single entry point: async vendors
// drive their own create/poll/fetch cycle inside it.
type Provider interface {
	// Name returns the provider identity, unique within its kind.
	Name() string

	// Kind returns the generation kind this provider produces.
	Kind() types.Kind

	// ValidateConfig checks that the configured credential or endpoint is
	// usable, returning a typed error when it is not. Probe failures are
	// advisory; transient faults during Generate are reported there.
	ValidateConfig(ctx context.Context) error

	// Generate runs one generation to completion and returns the
	// normalized response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// AsyncProvider is the task-lifecycle extension implemented by vendors
// whose API is create/poll/fetch. Whether a registered provider implements
// it is recorded as Metadata.IsAsync at registration time; callers check
// the flag, not the interface.
type AsyncProvider interface {
	Provider

	// CreateTask submits the generation and returns the vendor's opaque
	// task id.
	CreateTask(ctx context.Context, req *Request) (string, error)

	// CheckStatus maps the vendor's status vocabulary onto the shared set.
	CheckStatus(ctx context.Context, taskID string) (*TaskStatus, error)

	// GetResult fetches the final artifact for a completed task.
	GetResult(ctx context.Context, taskID string) (*Response, error)
}

// TaskRecorder observes async task submissions so in-flight vendor task
// ids outlive the process and an interrupted caller can resume polling.
// Implementations must tolerate concurrent use.
type TaskRecorder interface {
	TaskCreated(ctx context.Context, kind types.Kind, provider, vendorID string)
}

type taskRecorderKey struct{}

// WithTaskRecorder returns a context whose async task submissions are
// reported to rec.
func WithTaskRecorder(ctx context.Context, rec TaskRecorder) context.Context {
	return context.WithValue(ctx, taskRecorderKey{}, rec)
}

// RecordTaskCreated notifies the context's recorder, if any. Providers
// call it from CreateTask once the vendor has assigned a task id.
func RecordTaskCreated(ctx context.Context, kind types.Kind, provider, vendorID string) {
	if rec, ok := ctx.Value(taskRecorderKey{}).(TaskRecorder); ok && rec != nil {
		rec.TaskCreated(ctx, kind, provider, vendorID)
	}
}

// Metadata is the static description attached at registration. Immutable
// after registration; read by selection utilities and discovery.
type Metadata struct {
	Description   string   `json:"description"`
	Features      []string `json:"features,omitempty"`
	Limitations   []string `json:"limitations,omitempty"`
	CostPerUnit   float64  `json:"cost_per_unit,omitempty"` // USD per image/second/1k chars
	IsAsync       bool     `json:"is_async"`
	SupportsBatch bool     `json:"supports_batch"`
}

// Factory constructs a provider instance for one call from its resolved
// configuration.
type Factory func(cfg ProviderConfig) Provider
