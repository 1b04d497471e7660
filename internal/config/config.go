package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StorageBackend string

const (
	StorageMemory    StorageBackend = "memory"
	StorageSQLite    StorageBackend = "sqlite"
	StorageFirestore StorageBackend = "firestore"
)

// Model backend names usable in RELAY_DEFAULT_BACKEND and channel profiles.
const (
	BackendOpenAI = "openai"
	BackendVertex = "vertex"
	BackendGemini = "gemini"
	BackendMock   = "mock"
)

type Config struct {
	Discord DiscordConfig

	// AllowedChannels is fixed at startup. Empty allows every channel.
	AllowedChannels []string

	StorageBackend StorageBackend
	SQLitePath     string
	Firestore      FirestoreConfig

	DefaultBackend string
	OpenAI         OpenAIConfig
	Google         GoogleConfig

	HistoryLimit        int
	ModelTimeout        time.Duration
	CommandPrefix       string
	RecycleEmoji        string
	AcceptEmoji         string
	DefaultSystemPrompt string

	HTTPAddr     string
	ProfilesPath string
	Profiles     Profiles

	LogLevel string
}

type DiscordConfig struct {
	Token   string
	AppID   string
	GuildID string // empty registers commands globally
}

type FirestoreConfig struct {
	ProjectID string
	// CredentialsJSON is a service-account key. Empty uses ambient credentials.
	CredentialsJSON string
}

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

type GoogleConfig struct {
	Project      string
	Location     string
	Model        string
	GeminiAPIKey string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv loads a .env file when present. A missing file is not an error.
func LoadDotEnv(paths ...string) (bool, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false, nil
		}
	}
	if err := godotenv.Load(paths...); err != nil {
		return false, fmt.Errorf("loading env file: %w", err)
	}
	return true, nil
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	historyLimit, err := getIntEnv("RELAY_HISTORY_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	maxTokens, err := getIntEnv("OPENAI_MAX_TOKENS", 1024)
	if err != nil {
		return nil, err
	}
	modelTimeout, err := getDurationEnv("RELAY_MODEL_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Discord: DiscordConfig{
			Token:   getEnv("DISCORD_BOT_TOKEN", ""),
			AppID:   getEnv("DISCORD_APP_ID", ""),
			GuildID: getEnv("DISCORD_GUILD_ID", ""),
		},
		AllowedChannels: splitList(getEnv("RELAY_ALLOWED_CHANNELS", "")),

		StorageBackend: StorageBackend(strings.ToLower(getEnv("RELAY_STORAGE_BACKEND", string(StorageMemory)))),
		SQLitePath:     getEnv("RELAY_SQLITE_PATH", "data/relay.db"),
		Firestore: FirestoreConfig{
			ProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
			CredentialsJSON: getEnv("FIREBASE_SECRET_JSON", ""),
		},

		DefaultBackend: strings.ToLower(getEnv("RELAY_DEFAULT_BACKEND", BackendOpenAI)),
		OpenAI: OpenAIConfig{
			APIKey:    getEnv("OPENAI_API_KEY", "sk-dummy"),
			BaseURL:   getEnv("OPENAI_BASE_URL", ""),
			Model:     getEnv("OPENAI_MODEL", "main"),
			MaxTokens: maxTokens,
		},
		Google: GoogleConfig{
			Project:      getEnv("RELAY_GCP_PROJECT", ""),
			Location:     getEnv("RELAY_GCP_LOCATION", "us-central1"),
			Model:        getEnv("RELAY_GEMINI_MODEL", "gemini-2.5-flash"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		},

		HistoryLimit:        historyLimit,
		ModelTimeout:        modelTimeout,
		CommandPrefix:       getEnv("RELAY_COMMAND_PREFIX", "/"),
		RecycleEmoji:        getEnv("RELAY_RECYCLE_EMOJI", "♻️"),
		AcceptEmoji:         getEnv("RELAY_ACCEPT_EMOJI", "✅"),
		DefaultSystemPrompt: getEnv("RELAY_DEFAULT_SYSTEM_PROMPT", "You are a helpful chatbot."),

		HTTPAddr:     getEnv("RELAY_HTTP_ADDR", ":8080"),
		ProfilesPath: getEnv("RELAY_PROFILES_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if getBoolEnv("RELAY_USE_MOCK_LLM", false) {
		cfg.DefaultBackend = BackendMock
	}

	if cfg.ProfilesPath != "" {
		profiles, err := LoadProfiles(cfg.ProfilesPath)
		if err != nil {
			return nil, err
		}
		cfg.Profiles = profiles
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageSQLite:
	case StorageFirestore:
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	if c.HistoryLimit <= 0 {
		return fmt.Errorf("RELAY_HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("RELAY_MODEL_TIMEOUT must be positive, got %s", c.ModelTimeout)
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("RELAY_COMMAND_PREFIX must not be empty")
	}

	for _, b := range c.Backends() {
		if !knownBackend(b) {
			return fmt.Errorf("unknown model backend %q", b)
		}
	}
	return nil
}

// Backends lists every backend name referenced by the default or a profile.
func (c *Config) Backends() []string {
	seen := map[string]bool{c.DefaultBackend: true}
	out := []string{c.DefaultBackend}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	add(c.Profiles.Default.Backend)
	for _, p := range c.Profiles.Channels {
		add(p.Backend)
	}
	return out
}

func knownBackend(name string) bool {
	switch name {
	case BackendOpenAI, BackendVertex, BackendGemini, BackendMock:
		return true
	}
	return false
}
