package config

// FullConfig is the runtime configuration persisted in the options table and
// edited through the /configs API. Startup settings (port, DSN) live in
// AppConfig instead; everything here may change without a restart.
type FullConfig struct {
	AI       AIConfig       `json:"ai"`
	RAG      RAGConfig      `json:"rag"`
	Learning LearningConfig `json:"learning"`
	Backup   BackupConfig   `json:"backup"`
}

// AIProvider is one upstream model endpoint. Type selects the client:
// "openai", "anthropic", or "openai-compatible" (raw HTTP against BaseURL).
type AIProvider struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
	Enabled bool   `json:"enabled"`
}

// AIModelAssignment overrides the default provider for one task kind.
type AIModelAssignment struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

type AIConfig struct {
	Providers []AIProvider `json:"providers"`

	// Per-task overrides. Nil means "first enabled provider".
	GenerationModel *AIModelAssignment `json:"generation_model,omitempty"`
	CritiqueModel   *AIModelAssignment `json:"critique_model,omitempty"`
	SynthesisModel  *AIModelAssignment `json:"synthesis_model,omitempty"`
	EmbeddingModel  *AIModelAssignment `json:"embedding_model,omitempty"`

	EnableAutoCritique    bool `json:"enable_auto_critique"`
	RequestTimeoutSeconds int  `json:"request_timeout_seconds"`
}

// RAGConfig holds the retrieval defaults; requests may override all three.
type RAGConfig struct {
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
	MinScore      float64 `json:"min_score"`
}

type LearningConfig struct {
	// SynthesisThreshold is the critique-count modulus that triggers automatic
	// synthesis. Values below 1 disable the automatic path.
	SynthesisThreshold int `json:"synthesis_threshold"`

	// MinSynthesisBatch is the minimum critique count for manual synthesis.
	MinSynthesisBatch int `json:"min_synthesis_batch"`
}

type BackupConfig struct {
	Enabled bool      `json:"enabled"`
	S3      S3Options `json:"s3"`
}

type S3Options struct {
	Endpoint     string `json:"endpoint,omitempty"`
	Region       string `json:"region"`
	Bucket       string `json:"bucket"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Prefix       string `json:"prefix,omitempty"`
	UsePathStyle bool   `json:"use_path_style,omitempty"`
}

// DefaultFullConfig returns the configuration written to the options table on
// first boot.
func DefaultFullConfig() FullConfig {
	return FullConfig{
		AI: AIConfig{
			Providers:             []AIProvider{},
			EnableAutoCritique:    true,
			RequestTimeoutSeconds: 120,
		},
		RAG: RAGConfig{
			TopK:          2,
			MinSimilarity: 0.5,
			MinScore:      7.0,
		},
		Learning: LearningConfig{
			SynthesisThreshold: 2,
			MinSynthesisBatch:  3,
		},
		Backup: BackupConfig{
			Enabled: false,
			S3: S3Options{
				Region: "us-east-1",
			},
		},
	}
}
