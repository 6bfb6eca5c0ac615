// Package config assembles runtime configuration from defaults, an optional
// .env file, the process environment, and Secret Manager references.
package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultFirestoreDialTimeout = 10 * time.Second
	defaultSignedURLTTL         = 15 * time.Minute
	defaultMailPort             = 587
	defaultAuthClockSkew        = time.Minute
	defaultRateLimitDefault     = 120
	defaultRateLimitAuth        = 240
	defaultRateLimitWebhook     = 60
	defaultOrderRetention       = 30 * 24 * time.Hour
	defaultOrderSweepInterval   = time.Hour
	defaultOrderSweepBatchSize  = 200
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	Gateway     GatewayConfig
	Mail        MailConfig
	Auth        AuthConfig
	Events      EventsConfig
	Orders      OrdersConfig
	RateLimits  RateLimitConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	DialTimeout  time.Duration
}

// StorageConfig lists bucket names used by the application.
type StorageConfig struct {
	TemplatesBucket string
	ScansBucket     string
	SignedURLTTL    time.Duration
}

// GatewayConfig holds Razorpay credentials.
type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// MailConfig configures the outbound SMTP relay.
type MailConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	From           string
	SupportAddress string
	Enabled        bool
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// EventsConfig configures the Pub/Sub order event stream.
type EventsConfig struct {
	ProjectID string
	Topic     string
	Enabled   bool
}

// OrdersConfig controls order retention and the expiry sweep.
type OrdersConfig struct {
	Retention      time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	DefaultPerMinute       int
	AuthenticatedPerMinute int
	WebhookBurst           int
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves secret:// references to their payloads.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports required configuration fields that are missing or
// invalid, by field path (e.g. "Gateway.KeySecret").
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failure while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to
// an empty value. Error output and RedactedNames never expose the field
// paths, only hashes, so the error is safe to log.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed identifiers for the missing secrets.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the configuration field paths of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map taking precedence over the
// system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables os.Getenv lookups, relying only on the provided
// map and .env file.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks the given config field paths as mandatory
// secrets (e.g. "Gateway.KeySecret", "Auth.JWTSecret").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

func applyOptions(opts []Option) (loaderOptions, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options, nil
}

// EnvironmentValues returns the merged key/value environment using the same
// precedence as Load (dotenv < OS env < explicit map). Callers use it to
// initialise dependencies, like the secret fetcher, before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	source, err := newEnvSource(options)
	if err != nil {
		return nil, err
	}
	return source.merged(), nil
}

// Load assembles the application configuration, resolving any secret
// references and validating required fields.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options, err := applyOptions(opts)
	if err != nil {
		return Config{}, err
	}
	env, err := newEnvSource(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
			DialTimeout:  env.duration("API_FIRESTORE_DIAL_TIMEOUT", defaultFirestoreDialTimeout),
		},
		Storage: StorageConfig{
			TemplatesBucket: env.str("API_STORAGE_TEMPLATES_BUCKET", ""),
			ScansBucket:     env.str("API_STORAGE_SCANS_BUCKET", ""),
			SignedURLTTL:    env.duration("API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		Gateway: GatewayConfig{
			KeyID:         env.str("API_GATEWAY_KEY_ID", ""),
			KeySecret:     env.str("API_GATEWAY_KEY_SECRET", ""),
			WebhookSecret: env.str("API_GATEWAY_WEBHOOK_SECRET", ""),
		},
		Mail: MailConfig{
			Host:           env.str("API_MAIL_HOST", ""),
			Port:           env.integer("API_MAIL_PORT", defaultMailPort),
			Username:       env.str("API_MAIL_USERNAME", ""),
			Password:       env.str("API_MAIL_PASSWORD", ""),
			From:           env.str("API_MAIL_FROM", ""),
			SupportAddress: env.str("API_MAIL_SUPPORT_ADDRESS", ""),
			Enabled:        env.boolean("API_MAIL_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret: env.str("API_AUTH_JWT_SECRET", ""),
			Issuer:    env.str("API_AUTH_ISSUER", ""),
			Audience:  env.str("API_AUTH_AUDIENCE", ""),
			ClockSkew: env.duration("API_AUTH_CLOCK_SKEW", defaultAuthClockSkew),
		},
		Events: EventsConfig{
			ProjectID: env.str("API_EVENTS_PROJECT_ID", ""),
			Topic:     env.str("API_EVENTS_TOPIC", ""),
			Enabled:   env.boolean("API_EVENTS_ENABLED", false),
		},
		Orders: OrdersConfig{
			Retention:      env.duration("API_ORDERS_RETENTION", defaultOrderRetention),
			SweepInterval:  env.duration("API_ORDERS_SWEEP_INTERVAL", defaultOrderSweepInterval),
			SweepBatchSize: env.integer("API_ORDERS_SWEEP_BATCH", defaultOrderSweepBatchSize),
		},
		RateLimits: RateLimitConfig{
			DefaultPerMinute:       env.integer("API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
			AuthenticatedPerMinute: env.integer("API_RATELIMIT_AUTH_PER_MIN", defaultRateLimitAuth),
			WebhookBurst:           env.integer("API_RATELIMIT_WEBHOOK_BURST", defaultRateLimitWebhook),
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	// Events default to the database project when unspecified.
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}

	resolved, err := resolveSecretFields(ctx, &cfg, options.secret)
	if err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

// resolveSecretFields rewrites secret-bearing fields in place and returns the
// resolved values keyed by field path for required-secret enforcement.
func resolveSecretFields(ctx context.Context, cfg *Config, resolver SecretResolver) (map[string]string, error) {
	fields := []struct {
		name  string
		field *string
	}{
		{"Gateway.KeySecret", &cfg.Gateway.KeySecret},
		{"Gateway.WebhookSecret", &cfg.Gateway.WebhookSecret},
		{"Mail.Password", &cfg.Mail.Password},
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
	}

	resolved := make(map[string]string, len(fields))
	for _, target := range fields {
		value, err := resolveSecret(ctx, *target.field, resolver)
		if err != nil {
			return nil, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}
	return resolved, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	require := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}

	require(cfg.Server.Port != "", "Server.Port")
	require(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	require(cfg.Gateway.KeyID != "", "Gateway.KeyID")
	require(cfg.Gateway.KeySecret != "", "Gateway.KeySecret")
	require(cfg.Auth.JWTSecret != "", "Auth.JWTSecret")
	if cfg.Mail.Enabled {
		require(cfg.Mail.Host != "", "Mail.Host")
		require(cfg.Mail.From != "", "Mail.From")
	}
	require(cfg.Orders.Retention > 0, "Orders.Retention")
	require(cfg.Orders.SweepBatchSize > 0, "Orders.SweepBatchSize")
	require(strings.TrimSpace(cfg.Idempotency.Header) != "", "Idempotency.Header")
	require(cfg.Idempotency.TTL > 0, "Idempotency.TTL")
	require(cfg.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval")
	require(cfg.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var missing []missingSecret
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		if resolved[trimmed] != "" {
			continue
		}
		missing = append(missing, missingSecret{name: trimmed, redacted: redactSecretName(trimmed)})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

// normalizeSecretReference folds the legacy sm:// scheme into secret://.
func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
