package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Redis        RedisConfig
	Generation   GenerationConfig
	Conversation ConversationConfig
	Inventory    InventoryConfig
	Kitchen      KitchenConfig
	Dispatch     DispatchConfig
	Support      SupportConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Kitchen.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLATEFUL_APP_ENV" required:"true"`
	Port         string `envconfig:"PLATEFUL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLATEFUL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLATEFUL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"PLATEFUL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLATEFUL_REDIS_ADDR"`
	Password     string        `envconfig:"PLATEFUL_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLATEFUL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLATEFUL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLATEFUL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLATEFUL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLATEFUL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLATEFUL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GenerationConfig drives the external text-completion collaborator.
type GenerationConfig struct {
	BaseURL     string        `envconfig:"PLATEFUL_GENERATION_BASE_URL"`
	APIKey      string        `envconfig:"PLATEFUL_GENERATION_API_KEY"`
	Model       string        `envconfig:"PLATEFUL_GENERATION_MODEL" default:"gpt-4o-mini"`
	MaxTokens   int           `envconfig:"PLATEFUL_GENERATION_MAX_TOKENS" default:"1024"`
	MaxAttempts int           `envconfig:"PLATEFUL_GENERATION_MAX_ATTEMPTS" default:"3"`
	RetryBase   time.Duration `envconfig:"PLATEFUL_GENERATION_RETRY_BASE" default:"1s"`
	Timeout     time.Duration `envconfig:"PLATEFUL_GENERATION_TIMEOUT" default:"30s"`
}

type ConversationConfig struct {
	TTL         time.Duration `envconfig:"PLATEFUL_CONVERSATION_TTL" default:"30m"`
	MaxMessages int           `envconfig:"PLATEFUL_CONVERSATION_MAX_MESSAGES" default:"100"`
	HistorySize int           `envconfig:"PLATEFUL_CONVERSATION_HISTORY_SIZE" default:"10"`
}

type InventoryConfig struct {
	ReservationTTL    time.Duration `envconfig:"PLATEFUL_INVENTORY_RESERVATION_TTL" default:"5m"`
	LowStockThreshold int           `envconfig:"PLATEFUL_INVENTORY_LOW_STOCK_THRESHOLD" default:"10"`
}

type KitchenConfig struct {
	TicketTTL     time.Duration `envconfig:"PLATEFUL_KITCHEN_TICKET_TTL" default:"1h"`
	PeakStartHour int           `envconfig:"PLATEFUL_KITCHEN_PEAK_START_HOUR" default:"11"`
	PeakEndHour   int           `envconfig:"PLATEFUL_KITCHEN_PEAK_END_HOUR" default:"13"`
	EveningStart  int           `envconfig:"PLATEFUL_KITCHEN_EVENING_PEAK_START" default:"18"`
	EveningEnd    int           `envconfig:"PLATEFUL_KITCHEN_EVENING_PEAK_END" default:"20"`
	PrepTimeScale time.Duration `envconfig:"PLATEFUL_KITCHEN_PREP_TIME_SCALE" default:"1s"`
}

func (k KitchenConfig) validate() error {
	windows := [][2]int{
		{k.PeakStartHour, k.PeakEndHour},
		{k.EveningStart, k.EveningEnd},
	}
	for _, w := range windows {
		if w[0] < 0 || w[1] > 23 || w[0] > w[1] {
			return fmt.Errorf("invalid kitchen peak window %d-%d", w[0], w[1])
		}
	}
	return nil
}

// PeakWindows returns the configured peak load windows as [start, end] hours.
func (k KitchenConfig) PeakWindows() [][2]int {
	return [][2]int{
		{k.PeakStartHour, k.PeakEndHour},
		{k.EveningStart, k.EveningEnd},
	}
}

type DispatchConfig struct {
	AssignmentTTL  time.Duration `envconfig:"PLATEFUL_DISPATCH_ASSIGNMENT_TTL" default:"2h"`
	IssueTTL       time.Duration `envconfig:"PLATEFUL_DISPATCH_ISSUE_TTL" default:"24h"`
	DriverPoolSize int           `envconfig:"PLATEFUL_DISPATCH_DRIVER_POOL_SIZE" default:"5"`
	RetryWaitMins  int           `envconfig:"PLATEFUL_DISPATCH_RETRY_WAIT_MINUTES" default:"15"`
	DeliveryScale  time.Duration `envconfig:"PLATEFUL_DISPATCH_DELIVERY_TIME_SCALE" default:"1s"`
	RestaurantLat  float64       `envconfig:"PLATEFUL_DISPATCH_RESTAURANT_LAT" default:"40.7128"`
	RestaurantLng  float64       `envconfig:"PLATEFUL_DISPATCH_RESTAURANT_LNG" default:"-74.0060"`
}

type SupportConfig struct {
	AutoRefundLimit string        `envconfig:"PLATEFUL_SUPPORT_AUTO_REFUND_LIMIT" default:"100.00"`
	EscalationTTL   time.Duration `envconfig:"PLATEFUL_SUPPORT_ESCALATION_TTL" default:"72h"`
	TicketTTL       time.Duration `envconfig:"PLATEFUL_SUPPORT_TICKET_TTL" default:"24h"`
}
