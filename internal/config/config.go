package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fileplacer/internal/llm"
	"fileplacer/internal/placement"
)

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	Scan   ScanConfig
	Client ClientConfig

	Port  string
	Env   string
	Store StoreConfig
	// AllowedOrigins lists browser origins the HTTP API answers cross-origin.
	AllowedOrigins []string

	// modelSet records an explicit FILEPLACER_MODEL. apiKeys and models hold
	// the per-provider values seen so UseProvider can switch without
	// rereading env.
	modelSet bool
	apiKeys  map[string]string
	models   map[string]string
}

type ScanConfig struct {
	MaxFiles        int
	IncludeHidden   bool
	Concurrency     int
	Timeout         time.Duration
	ConventionsPath string
	ReposDir        string
}

type ClientConfig struct {
	RPS       float64
	Burst     int
	Retries   int
	CacheSize int
}

type StoreConfig struct {
	Kind        string
	Dir         string
	PostgresDSN string
	S3          S3Config
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads .env (if present) and the process environment. Credentials are
// not checked here so flags can still supply them; call Validate before use.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an env lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(k string) string { return strings.TrimSpace(getenv(k)) }
	p := &parser{env: env}

	provider := strings.ToLower(firstNonEmpty(env("FILEPLACER_PROVIDER"), "openai"))
	appEnv := firstNonEmpty(env("APP_ENV"), "local")

	keys := map[string]string{
		"openai": env("OPENAI_API_KEY"),
		"groq":   env("GROQ_API_KEY"),
		"gemini": firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY")),
	}
	// OPENAI_MODEL only names a model for the openai provider.
	models := map[string]string{"openai": env("OPENAI_MODEL")}
	explicitModel := env("FILEPLACER_MODEL")
	cfg := &Config{
		Provider: provider,
		APIKey:   keys[provider],
		Model:    firstNonEmpty(explicitModel, models[provider], llm.DefaultModel(provider)),
		BaseURL:  env("FILEPLACER_BASE_URL"),
		Scan: ScanConfig{
			MaxFiles:        p.getInt("FILEPLACER_MAX_FILES", placement.DefaultMaxFiles),
			IncludeHidden:   p.getBool("FILEPLACER_INCLUDE_HIDDEN", false),
			Concurrency:     p.getInt("FILEPLACER_CONCURRENCY", 1),
			Timeout:         p.getDuration("FILEPLACER_TIMEOUT", placement.DefaultCallTimeout),
			ConventionsPath: env("FILEPLACER_CONVENTIONS"),
			ReposDir:        env("FILEPLACER_REPOS_DIR"),
		},
		Client: ClientConfig{
			RPS:       p.getFloat("FILEPLACER_RPS", 0),
			Burst:     p.getInt("FILEPLACER_BURST", 1),
			Retries:   p.getInt("FILEPLACER_RETRIES", 0),
			CacheSize: p.getInt("FILEPLACER_CACHE_SIZE", 1024),
		},
		Port:           normalizePort(firstNonEmpty(env("PORT"), ":8081")),
		Env:            appEnv,
		Store:          loadStoreConfig(appEnv, env, p),
		AllowedOrigins: splitList(env("FILEPLACER_ALLOWED_ORIGINS")),

		modelSet: explicitModel != "",
		apiKeys:  keys,
		models:   models,
	}
	if p.err != nil {
		return nil, p.err
	}
	if cfg.Scan.MaxFiles <= 0 {
		return nil, fmt.Errorf("%w: FILEPLACER_MAX_FILES must be positive", placement.ErrInvalidInput)
	}
	if cfg.Scan.Concurrency < 1 {
		cfg.Scan.Concurrency = 1
	}
	return cfg, nil
}

// Validate reports configuration that must be fixed before any scan runs.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "groq", "gemini":
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("%w for provider %s", placement.ErrMissingCredential, c.Provider)
		}
	case "fake":
	default:
		return fmt.Errorf("%w: unknown provider %q", placement.ErrInvalidInput, c.Provider)
	}
	return nil
}

// ProviderConfig returns the client settings for llm.New.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		RPS:       c.Client.RPS,
		Burst:     c.Client.Burst,
		Retries:   c.Client.Retries,
		CacheSize: c.Client.CacheSize,
	}
}

// ScanOptions returns the per-scan defaults.
func (c *Config) ScanOptions() placement.ScanOptions {
	return placement.ScanOptions{
		MaxFiles:      c.Scan.MaxFiles,
		IncludeHidden: c.Scan.IncludeHidden,
		Model:         c.Model,
	}
}

// UseProvider switches provider after loading. The key and default model
// follow the new provider unless a model was set explicitly.
func (c *Config) UseProvider(provider string) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == c.Provider {
		return
	}
	c.Provider = provider
	c.APIKey = c.apiKeys[provider]
	if !c.modelSet {
		c.Model = firstNonEmpty(c.models[provider], llm.DefaultModel(provider))
	}
}

// DefaultReposDir is <cwd>/repos.
func DefaultReposDir() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "repos")
	}
	return filepath.Join(".", "repos")
}

// ServeReposDir is the directory local scans are confined to when serving
// HTTP. Serving never runs unconfined, so an unset FILEPLACER_REPOS_DIR
// falls back to DefaultReposDir.
func (c *Config) ServeReposDir() string {
	if dir := strings.TrimSpace(c.Scan.ReposDir); dir != "" {
		return dir
	}
	return DefaultReposDir()
}

func loadStoreConfig(appEnv string, env func(string) string, p *parser) StoreConfig {
	local := strings.EqualFold(appEnv, "local")
	s3 := S3Config{
		Endpoint:  env("REPORT_S3_ENDPOINT"),
		Region:    firstNonEmpty(env("REPORT_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(env("REPORT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(env("REPORT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(env("REPORT_S3_BUCKET"), "fileplacer-reports"),
		UseSSL:    p.getBool("REPORT_S3_USE_SSL", !local),
	}
	if local && s3.Endpoint == "" {
		s3.Endpoint = "minio:9000"
	}
	return StoreConfig{
		Kind:        strings.ToLower(firstNonEmpty(env("REPORT_STORE"), "file")),
		Dir:         firstNonEmpty(env("REPORT_DIR"), ".fileplacer/reports"),
		PostgresDSN: firstNonEmpty(env("REPORT_PG_DSN"), env("DATABASE_URL")),
		S3:          s3,
	}
}

func normalizePort(port string) string {
	if strings.HasPrefix(port, ":") || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	env func(string) string
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", placement.ErrInvalidInput, key, raw, err)
	}
}

func (p *parser) getInt(key string, def int) int {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getFloat(key string, def float64) float64 {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getBool(key string, def bool) bool {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	raw := p.env(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		// bare numbers are seconds
		secs, ierr := strconv.Atoi(raw)
		if ierr != nil {
			p.fail(key, raw, err)
			return def
		}
		return time.Duration(secs) * time.Second
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
