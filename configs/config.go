package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// APIVersion は公開APIのバージョンです。/health レスポンスで返却されます。
const APIVersion = "1.0.0"

// Config holds the application configuration
type Config struct {
	Port                string
	Environment         string
	APIKeys             []string
	RateLimitRequests   int
	RateLimitWindow     int
	RateLimitEnabled    bool
	CORSOrigins         []string
	LogLevel            string
	ModelsDir           string
	SkillGapModelPath   string
	DifficultyModelPath string
	RankingModelPath    string
	Thresholds          Thresholds
}

// Thresholds は推論・適応ルールで使用する名前付きしきい値です。
// オフライン学習側と共有する契約値のため、環境変数ではなく
// コード側（起動時・テスト時）で差し替えます。
type Thresholds struct {
	SkillGapWeak       float64 // gap_score がこの値を超えると weak 判定
	AdaptationGapHigh  float64 // ルール1: 基礎リソース追加
	AdaptationAccuracy float64 // ルール3: 難易度引き上げ
	AdaptationFailure  float64 // ルール2: 難易度引き下げ
}

// DefaultThresholds returns the standard threshold set shared with offline training.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SkillGapWeak:       0.6,
		AdaptationGapHigh:  0.75,
		AdaptationAccuracy: 0.85,
		AdaptationFailure:  0.6,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	modelsDir := getEnv("MODELS_DIR", "models")

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		APIKeys:             splitAndTrim(getEnv("API_KEY", "")),
		RateLimitRequests:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:     getEnvInt("RATE_LIMIT_WINDOW", 60),
		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
		CORSOrigins:         splitAndTrim(getEnv("CORS_ORIGINS", "*")),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		ModelsDir:           modelsDir,
		SkillGapModelPath:   filepath.Join(modelsDir, "skill_gap_model.json"),
		DifficultyModelPath: filepath.Join(modelsDir, "difficulty_model.json"),
		RankingModelPath:    filepath.Join(modelsDir, "ranking_model.json"),
		Thresholds:          DefaultThresholds(),
	}
}

// AuthEnabled はAPIキー認証が有効かどうかを返します。
// キーが1つも設定されていない場合、認証は無効です。
func (c *Config) AuthEnabled() bool {
	return len(c.APIKeys) > 0
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

// splitAndTrim はカンマ区切りの文字列を分割し、空要素を除外します。
func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
