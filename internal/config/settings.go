package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	PollTimeout   int    `mapstructure:"poll_timeout"`
	EnableQuoting bool   `mapstructure:"enable_quoting"`
	BotLanguage   string `mapstructure:"bot_language"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Servers []string `mapstructure:"servers"`
	Model   string   `mapstructure:"model"`
}

// StreamConfig tunes the adaptive streaming renderer.
type StreamConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	MaxMessageSize      int  `mapstructure:"max_message_size"`
	BackoffStep         int  `mapstructure:"backoff_step"`
	TimeoutRetryDelayMs int  `mapstructure:"timeout_retry_delay_ms"`
}

func (s StreamConfig) TimeoutRetryDelay() time.Duration {
	return time.Duration(s.TimeoutRetryDelayMs) * time.Millisecond
}

type CryptomusConfig struct {
	MerchantID string `mapstructure:"merchant_id"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
}

type TlyncConfig struct {
	Token   string `mapstructure:"token"`
	StoreID string `mapstructure:"store_id"`
	BaseURL string `mapstructure:"base_url"`
}

type PaymentsConfig struct {
	Cryptomus CryptomusConfig `mapstructure:"cryptomus"`
	Tlync     TlyncConfig     `mapstructure:"tlync"`
}

// BudgetConfig prices usage and seeds new users.
type BudgetConfig struct {
	TokenPrice     float64 `mapstructure:"token_price"`      // per 1000 tokens
	InitialBalance float64 `mapstructure:"initial_balance"`  // free credit on first contact
	HistoryWindow  int     `mapstructure:"history_window"`   // messages of context per prompt
	HistoryTTLMins int64   `mapstructure:"history_ttl_mins"` // conversation memory lifetime
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type Settings struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	DB       DBConfig       `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Server   ServerConfig   `mapstructure:"server"`
	Env      string         `mapstructure:"env"`
	Debug    bool           `mapstructure:"debug"`
}

func Load() (*Settings, error) {
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func setDefaults() {
	viper.SetDefault("telegram.poll_timeout", 30)
	viper.SetDefault("telegram.bot_language", "en")
	viper.SetDefault("stream.enabled", true)
	viper.SetDefault("stream.max_message_size", 4096)
	viper.SetDefault("stream.backoff_step", 5)
	viper.SetDefault("stream.timeout_retry_delay_ms", 500)
	viper.SetDefault("budget.token_price", 0.002)
	viper.SetDefault("budget.initial_balance", 1)
	viper.SetDefault("budget.history_window", 20)
	viper.SetDefault("budget.history_ttl_mins", 180)
	viper.SetDefault("server.port", 8080)
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
