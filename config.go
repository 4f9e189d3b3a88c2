package dwmcp

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig        `json:"pool"`
	Cache        CacheConfig       `json:"cache"`
	Query        QueryConfig       `json:"query"`
	Report       ReportConfig      `json:"report"`
	ErrorPrompts []ErrorPromptRule `json:"error_prompts"`
	Masking      []MaskingRule     `json:"masking"`
	Timezone     string            `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns              int    `json:"max_conns"`
	MinConns              int    `json:"min_conns"`
	MaxConnLifetime       string `json:"max_conn_lifetime"`
	MaxConnIdleTime       string `json:"max_conn_idle_time"`
	HealthCheckPeriod     string `json:"health_check_period"`
	AcquireTimeoutSeconds int    `json:"acquire_timeout_seconds"`
}

// CacheConfig holds metadata cache settings. SchemaPrefixes and SchemaNames
// together define the "interesting schema" naming convention: a schema is
// cached if its name starts with any prefix or equals any exact name.
type CacheConfig struct {
	TTLSeconds     int      `json:"ttl_seconds"`
	SchemaPrefixes []string `json:"schema_prefixes"`
	SchemaNames    []string `json:"schema_names"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultLimit           int `json:"default_limit"`
	MaxSQLLength           int `json:"max_sql_length"`
	MaxResultLength        int `json:"max_result_length"`
	MetadataTimeoutSeconds int `json:"metadata_timeout_seconds"`
	PreviewMaxRows         int `json:"preview_max_rows"`
}

// ReportConfig holds structured aggregate query settings. TargetTable is
// the one fact table reports run against; it is never caller-supplied.
type ReportConfig struct {
	TargetTable string `json:"target_table"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// ErrorPromptRule maps an error message pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// MaskingRule defines a regex-based result field masking rule.
type MaskingRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
