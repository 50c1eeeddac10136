package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conneroisu/seedling/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}
	write("Errors", vr.Errors)
	write("Warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfig(&config.Server, result)
	validateRenderConfig(config, result)
	validateDataSourceConfig(&config.DataSource, result)
	validateLogConfig(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system assign a port in tests.
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common development ports: 3000, 8080, 8000")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				result.addError("server.host", config.Host, "host contains dangerous character: "+char,
					"Use 'localhost' for local development", "Use '0.0.0.0' to bind to all interfaces")
				break
			}
		}
	}

	switch config.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		result.addError("server.environment", config.Environment, "unknown environment",
			"Use 'development' to show stack traces in failure documents",
			"Use 'production' to hide them")
	}

	if config.RateLimit < 0 {
		result.addError("server.rate_limit", config.RateLimit, "rate limit must not be negative",
			"Use 0 to disable rate limiting")
	}

	if config.RequestTimeout < 0 {
		result.addError("server.request_timeout", config.RequestTimeout, "timeout must not be negative")
	} else if config.RequestTimeout == 0 {
		result.addWarning("server.request_timeout", config.RequestTimeout,
			"no request deadline: a render that never settles holds its connection open")
	}
}

func validateRenderConfig(config *Config, result *ValidationResult) {
	r := &config.Render

	switch r.Mode {
	case ModeTemplate, ModeStatic:
	default:
		result.addError("render.mode", r.Mode, "unknown module load mode",
			"Use 'template' to compile the module on each change",
			"Use 'static' to serve the module compiled into the binary")
	}
	if r.Mode == ModeTemplate && config.Production() {
		result.addWarning("render.mode", r.Mode, "compiling modules at runtime in production")
	}

	if r.Module == "" {
		result.addError("render.module", r.Module, "module path cannot be empty")
	}
	if err := validatePath(r.AssetsDir); err != nil {
		result.addError("render.assets_dir", r.AssetsDir, err.Error())
	}
	if r.BundleScript == "" {
		result.addError("render.bundle_script", r.BundleScript, "bundle script cannot be empty",
			"Failure documents must reference the client bundle")
	}
	if !strings.HasPrefix(r.RouteBasePath, "/") {
		result.addError("render.route_base_path", r.RouteBasePath, "base path must start with '/'")
	}
	if r.MaxPasses <= 0 {
		result.addError("render.max_passes", r.MaxPasses, "must be positive")
	}
	if r.Concurrency <= 0 {
		result.addError("render.concurrency", r.Concurrency, "must be positive")
	}
}

func validateDataSourceConfig(config *DataSourceConfig, result *ValidationResult) {
	if config.BaseURL != "" {
		u, err := url.Parse(config.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result.addError("data_source.base_url", logging.SanitizeForLog("base_url", config.BaseURL),
				"base URL must be an absolute http or https URL")
		}
	}
	if config.Timeout < 0 {
		result.addError("data_source.timeout", config.Timeout, "timeout must not be negative")
	}
}

func validateLogConfig(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	switch config.Format {
	case "text", "json":
	default:
		result.addError("log.format", config.Format, "unknown log format", "Use text or json")
	}
}

// validatePath validates a relative file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
