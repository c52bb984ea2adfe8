package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Rule set operations. Deleting a rule set deletes its sub-rules.
	SaveRuleSet(ctx context.Context, tenantID string, rs *RuleSet) error
	GetRuleSet(ctx context.Context, tenantID string, ruleSetID string) (*RuleSet, error)
	ListRuleSets(ctx context.Context, tenantID string) ([]*RuleSet, error)
	DeleteRuleSet(ctx context.Context, tenantID string, ruleSetID string) error
	SaveSubRule(ctx context.Context, tenantID string, sr *SubRule) error

	// Provider operations
	SaveProvider(ctx context.Context, tenantID string, p *SignalProvider) error
	GetProvider(ctx context.Context, tenantID string, providerID string) (*SignalProvider, error)
	ListProviders(ctx context.Context, tenantID string) ([]*SignalProvider, error)

	// Breach event operations. Events are append-only.
	SaveBreachEvent(ctx context.Context, tenantID string, ev *BreachEvent) error
	ListBreachEvents(ctx context.Context, tenantID string, since time.Time) ([]*BreachEvent, error)

	// Batch name lookups for the breach transformer, keyed by the
	// distinct ids observed in a filtered slice.
	GetProviderNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
	GetRuleSetNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
	GetSubRuleNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error)

	// Cooldown operations. EndCooldown performs the guarded
	// active → ended_manually transition; ExpireCooldowns flips overdue
	// active rows to expired and returns how many changed.
	SaveCooldown(ctx context.Context, tenantID string, cd *ActiveCooldown) error
	GetCooldown(ctx context.Context, tenantID string, cooldownID string) (*ActiveCooldown, error)
	ListActiveCooldowns(ctx context.Context, tenantID string) ([]*ActiveCooldown, error)
	EndCooldown(ctx context.Context, tenantID string, cooldownID, reason, endedBy string, endedAt time.Time) (*ActiveCooldown, error)
	ExpireCooldowns(ctx context.Context, now time.Time) (int64, error)

	// Provider statistics
	SaveProviderStatistics(ctx context.Context, tenantID string, stats *ProviderStatistics) error
	GetProviderStatistics(ctx context.Context, tenantID string, providerID string) (*ProviderStatistics, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver" json:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath" json:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost" json:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort" json:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser" json:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword" json:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDb" json:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode" json:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns" json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
}
