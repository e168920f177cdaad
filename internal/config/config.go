package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds runtime configuration for the HMI API service.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	DefaultLimit    int
	LogLevel        string
	LogJSON         bool
	GroupDelimiter  string

	DBEnabled      bool
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBConnTimeout  time.Duration
	DBQueryTimeout time.Duration

	ViewStoreSQLitePath string

	AlertWindowDelayDays   float64
	AlertWindowSizeDays    float64
	AlertRepeatCycle       time.Duration
	AlertExcludeSignatures []string
}

// FromEnv loads configuration from environment variables with sensible defaults.
func FromEnv() Config {
	loadConfigDefaultsFromFile()
	loadSecretsDefaultsFromFile()

	return Config{
		ListenAddr:             getEnv("APP_LISTEN_ADDR", ":8080"),
		ReadTimeout:            time.Duration(getEnvInt("APP_READ_TIMEOUT_SEC", 10)) * time.Second,
		WriteTimeout:           time.Duration(getEnvInt("APP_WRITE_TIMEOUT_SEC", 20)) * time.Second,
		ShutdownTimeout:        time.Duration(getEnvInt("APP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		DefaultLimit:           getEnvLimit("APP_DEFAULT_LIMIT", 100, 1000),
		LogLevel:               getEnv("APP_LOG_LEVEL", "info"),
		LogJSON:                getEnvBool("APP_LOG_JSON", false),
		GroupDelimiter:         getEnv("APP_GROUP_DELIMITER", ";"),
		DBEnabled:              getEnvBool("APP_DB_ENABLED", false),
		DBHost:                 getEnv("APP_DB_HOST", "127.0.0.1"),
		DBPort:                 getEnvInt("APP_DB_PORT", 3306),
		DBUser:                 getEnv("APP_DB_USER", "eboa"),
		DBPassword:             getEnv("APP_DB_PASSWORD", ""),
		DBName:                 getEnv("APP_DB_NAME", "eboadb"),
		DBConnTimeout:          time.Duration(getEnvInt("APP_DB_CONN_TIMEOUT_SEC", 5)) * time.Second,
		DBQueryTimeout:         time.Duration(getEnvInt("APP_DB_QUERY_TIMEOUT_SEC", 10)) * time.Second,
		ViewStoreSQLitePath:    getEnv("APP_VIEW_STORE_SQLITE_PATH", ""),
		AlertWindowDelayDays:   getEnvFloat("APP_ALERT_WINDOW_DELAY_DAYS", 0),
		AlertWindowSizeDays:    getEnvFloat("APP_ALERT_WINDOW_SIZE_DAYS", 0.25),
		AlertRepeatCycle:       time.Duration(getEnvInt("APP_ALERT_REPEAT_CYCLE_MIN", 5)) * time.Minute,
		AlertExcludeSignatures: getEnvList("APP_ALERT_EXCLUDE_DIM_SIGNATURES", []string{"BOA_HEALTH"}),
	}
}

func loadConfigDefaultsFromFile() {
	bootstrapCandidates := []string{
		"./vboa-hmi.env",
		"/etc/default/vboa-hmi",
	}

	for _, candidate := range bootstrapCandidates {
		_ = applyEnvDefaultsFromFile(absPath(candidate))
	}

	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "/etc/vboa-hmi/config.toml", "/etc/vboa-hmi/config.env")

	for _, candidate := range candidates {
		if err := applyDefaultsFromFile(absPath(candidate)); err == nil {
			return
		}
	}
}

func loadSecretsDefaultsFromFile() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_SECRETS_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if credDir := strings.TrimSpace(os.Getenv("CREDENTIALS_DIRECTORY")); credDir != "" {
		credName := strings.TrimSpace(os.Getenv("APP_SECRETS_CREDENTIAL_NAME"))
		if credName == "" {
			credName = "app-secrets"
		}
		candidates = append(candidates, filepath.Join(credDir, credName))
	}
	candidates = append(candidates, "/etc/vboa-hmi/secrets.env")
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := applyEnvDefaultsFromFile(candidate); err == nil {
			return
		}
	}
}

func absPath(candidate string) string {
	if filepath.IsAbs(candidate) {
		return candidate
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, candidate)
	}
	return candidate
}

func applyDefaultsFromFile(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return applyTOMLDefaultsFromFile(path)
	}
	return applyEnvDefaultsFromFile(path)
}

func applyEnvDefaultsFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key == "" {
			continue
		}

		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}

		setDefault(key, val)
	}

	return scanner.Err()
}

// applyTOMLDefaultsFromFile reads a flat TOML table whose keys are the
// APP_* variable names. Lists are joined with commas.
func applyTOMLDefaultsFromFile(path string) error {
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return err
	}

	for key, v := range raw {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			setDefault(key, strings.Join(parts, ","))
		case map[string]any:
			continue
		default:
			setDefault(key, fmt.Sprint(val))
		}
	}
	return nil
}

func setDefault(key, val string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, val)
	}
}

// MySQLDSN returns a mysql driver DSN with safe defaults for TCP access.
func (c Config) MySQLDSN() string {
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("loc", "UTC")
	params.Set("timeout", c.DBConnTimeout.String())
	params.Set("readTimeout", c.DBQueryTimeout.String())
	params.Set("writeTimeout", c.DBQueryTimeout.String())
	params.Set("charset", "utf8mb4")
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, params.Encode())
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

// getEnvLimit reads a list limit, falling back to def outside (0, upper].
func getEnvLimit(key string, def, upper int) int {
	v := getEnvInt(key, def)
	if v <= 0 || v > upper {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvList(key string, def []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		out := make([]string, 0, len(def))
		for _, d := range def {
			d = strings.TrimSpace(d)
			if d != "" {
				out = append(out, d)
			}
		}
		return out
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
