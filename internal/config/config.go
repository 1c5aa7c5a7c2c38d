package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/isdlab/reimburse/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Report   ReportConfig   `mapstructure:"report"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig holds receipt storage configuration
type StorageConfig struct {
	ReceiptDir string `mapstructure:"receipt_dir"`
}

// ReportConfig holds report generation configuration, including the fixed
// claimant block written into every generated form
type ReportConfig struct {
	TemplatePath  string `mapstructure:"template_path"`
	FormNumber    string `mapstructure:"form_number"`
	ClaimantName  string `mapstructure:"claimant_name"`
	StaffID       string `mapstructure:"staff_id"`
	Email         string `mapstructure:"email"`
	ProjectNumber string `mapstructure:"project_number"`
	Supervisor    string `mapstructure:"supervisor"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/reimburse.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Storage defaults
	viper.SetDefault("storage.receipt_dir", "data/receipts")

	// Report defaults
	viper.SetDefault("report.template_path", "templates/isd_reimbursement_template.xlsx")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("report.form_number", "REPORT_FORM_NUMBER")
	viper.BindEnv("report.claimant_name", "REPORT_CLAIMANT_NAME")
	viper.BindEnv("report.staff_id", "REPORT_STAFF_ID")
	viper.BindEnv("report.email", "REPORT_EMAIL")
	viper.BindEnv("report.project_number", "REPORT_PROJECT_NUMBER")
	viper.BindEnv("report.supervisor", "REPORT_SUPERVISOR")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.ReceiptDir == "" {
		return fmt.Errorf("storage.receipt_dir is required")
	}
	if c.Report.TemplatePath == "" {
		return fmt.Errorf("report.template_path is required")
	}
	if c.Report.ClaimantName == "" {
		return fmt.Errorf("report.claimant_name is required")
	}
	if c.Report.Email != "" {
		if err := utils.ValidateEmail(c.Report.Email); err != nil {
			return fmt.Errorf("report.email: %w", err)
		}
	}
	return nil
}
