package config

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/joho/godotenv"
)

const (
	ProviderAuth0  = "auth0"
	ProviderKratos = "kratos"
	ProviderMemory = "memory"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the application configuration
type Config struct {
	Project     Project     `koanf:"project" json:"project"`
	Identity    Identity    `koanf:"identity" json:"identity"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Server      Server      `koanf:"server" json:"server"`
	Console     Console     `koanf:"console" json:"console"`
	Logger      Logger      `koanf:"logger" json:"logger"`
}

// Project names the auth provider project the console administers
type Project struct {
	ID   string `koanf:"id" json:"id"`
	Name string `koanf:"name" json:"name"`
}

type Identity struct {
	Provider string `koanf:"provider" json:"provider"`
	Auth0    Auth0  `koanf:"auth0" json:"auth0"`
	Kratos   Kratos `koanf:"kratos" json:"kratos"`
	Memory   Memory `koanf:"memory" json:"memory"`
}

type Auth0 struct {
	Domain       string `koanf:"domain" json:"domain"`
	ClientID     string `koanf:"client_id" json:"client_id"`
	ClientSecret string `koanf:"client_secret" json:"-"`
	Connection   string `koanf:"connection" json:"connection"`
	Audience     string `koanf:"audience" json:"audience"`
}

type Kratos struct {
	PublicURL string `koanf:"public_url" json:"public_url"`
	AdminURL  string `koanf:"admin_url" json:"admin_url"`
	SchemaID  string `koanf:"schema_id" json:"schema_id"`
}

// Memory seeds the in-process backend with one administrator
type Memory struct {
	SeedAdminEmail    string `koanf:"seed_admin_email" json:"seed_admin_email"`
	SeedAdminPassword string `koanf:"seed_admin_password" json:"-"`
}

type Persistence struct {
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	Migrate               bool   `koanf:"migrate" json:"migrate"`
	Debug                 bool   `koanf:"debug" json:"debug"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
	OtelIdentifier        string `koanf:"otel_identifier" json:"otel_identifier"`
}

type Server struct {
	Address                   string `koanf:"address" json:"address"`
	ShutdownTimeoutExpression string `koanf:"shutdown_timeout" json:"shutdown_timeout"`
	// SessionSigningKey signs the admin session tokens of the JSON API. A
	// random key is generated at startup when empty.
	SessionSigningKey    string `koanf:"session_signing_key" json:"-"`
	SessionTTLExpression string `koanf:"session_ttl" json:"session_ttl"`
}

type Console struct {
	Locale            string  `koanf:"locale" json:"locale"`
	MinPasswordLength int     `koanf:"min_password_length" json:"min_password_length"`
	MobileRegion      string  `koanf:"mobile_region" json:"mobile_region"`
	SignInRate        float64 `koanf:"sign_in_rate" json:"sign_in_rate"`
	SignInBurst       int     `koanf:"sign_in_burst" json:"sign_in_burst"`
}

type Logger struct {
	Level  string `koanf:"level" json:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty"`
}

// Defaults returns a configuration that runs locally against the memory
// backend and a file backed SQLite store.
func Defaults() *Config {
	return &Config{
		Project: Project{ID: "local", Name: "User Roles"},
		Identity: Identity{
			Provider: ProviderMemory,
			Auth0:    Auth0{Connection: "Username-Password-Authentication"},
			Kratos:   Kratos{SchemaID: "default"},
		},
		Persistence: Persistence{
			Driver:  DriverSQLite,
			DSN:                   "file:accounts.db?cache=shared",
			Migrate:               true,
			PingTimeoutExpression: "5s",
		},
		Server: Server{
			Address:                   ":8572",
			ShutdownTimeoutExpression: "10s",
			SessionTTLExpression:      "8h",
		},
		Console: Console{
			Locale:            "en",
			MinPasswordLength: 6,
			MobileRegion:      "FR",
			SignInRate:        0.2,
			SignInBurst:       5,
		},
		Logger: Logger{Level: "info", Pretty: true},
	}
}

// Validate checks every setting the process cannot start without.
func (c Config) Validate() error {
	return validation.Errors{
		"project":     c.Project.Validate(),
		"identity":    c.Identity.Validate(),
		"persistence": c.Persistence.Validate(),
		"server":      c.Server.Validate(),
		"console":     c.Console.Validate(),
	}.Filter()
}

func (p Project) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required),
	)
}

func (i Identity) Validate() error {
	err := validation.ValidateStruct(&i,
		validation.Field(&i.Provider, validation.Required, validation.In(ProviderAuth0, ProviderKratos, ProviderMemory)),
	)
	if err != nil {
		return err
	}

	switch i.Provider {
	case ProviderAuth0:
		a := i.Auth0
		return validation.ValidateStruct(&a,
			validation.Field(&a.Domain, validation.Required),
			validation.Field(&a.ClientID, validation.Required),
			validation.Field(&a.ClientSecret, validation.Required),
		)
	case ProviderKratos:
		k := i.Kratos
		return validation.ValidateStruct(&k,
			validation.Field(&k.PublicURL, validation.Required, is.URL),
			validation.Field(&k.AdminURL, validation.Required, is.URL),
		)
	case ProviderMemory:
		m := i.Memory
		return validation.ValidateStruct(&m,
			validation.Field(&m.SeedAdminEmail, is.Email),
			validation.Field(&m.SeedAdminPassword, validation.By(requiredWith(m.SeedAdminEmail))),
		)
	}
	return nil
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.PingTimeoutExpression, validation.By(validDuration)),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ShutdownTimeoutExpression, validation.By(validDuration)),
		validation.Field(&s.SessionTTLExpression, validation.By(validDuration)),
	)
}

func (c Console) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Locale, validation.In("en", "fr")),
		validation.Field(&c.MinPasswordLength, validation.Min(1)),
		validation.Field(&c.SignInRate, validation.Min(0.0)),
		validation.Field(&c.SignInBurst, validation.Min(0)),
	)
}

// GetSessionTTL parses the admin session lifetime, 8h when unset
func (s Server) GetSessionTTL() time.Duration {
	dur, err := time.ParseDuration(strings.TrimSpace(s.SessionTTLExpression))
	if err != nil || dur <= 0 {
		return 8 * time.Hour
	}
	return dur
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDriver() string {
	return p.Driver
}

func (p Persistence) GetServer() string {
	return p.DSN
}

// GetPingTimeout parses the ping timeout, 5s when unset
func (p Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(strings.TrimSpace(p.PingTimeoutExpression))
	if err != nil || dur <= 0 {
		return 5 * time.Second
	}
	return dur
}

func (p Persistence) GetOtelIdentifier() string {
	return p.OtelIdentifier
}

// GetShutdownTimeout parses the shutdown timeout, 10s when unset
func (s Server) GetShutdownTimeout() time.Duration {
	dur, err := time.ParseDuration(strings.TrimSpace(s.ShutdownTimeoutExpression))
	if err != nil || dur <= 0 {
		return 10 * time.Second
	}
	return dur
}

func validDuration(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return errors.New("must be a valid duration")
	}
	return nil
}

func requiredWith(other string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(other) != "" && strings.TrimSpace(s) == "" {
			return errors.New("cannot be blank")
		}
		return nil
	}
}

// New returns a container holding the defaults
func New() *gconfig.Container[*Config] {
	return gconfig.New(Defaults())
}

// Load reads .env files into the environment, then loads cfg and validates
// the result. Missing .env files are ignored.
func Load(ctx context.Context, cfg *gconfig.Container[*Config], envFiles ...string) (*Config, error) {
	loadEnvFiles(envFiles...)

	if err := cfg.Load(ctx); err != nil {
		return nil, err
	}

	raw := cfg.Raw()
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return raw, nil
}

func loadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		_ = godotenv.Load(file)
	}
}
