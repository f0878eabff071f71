package conf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var (
	configValidator = newConfigValidator()
	numberRegex     = regexp.MustCompile(`^\d+$`)
)

type Config struct {
	HTTPServConf HttpServConf  `json:"httpServer" validate:"required"`
	DBConf       DbConf        `json:"dataBase" validate:"required"`
	RedisConf    RedisConf     `json:"redis"`
	ReportConf   ReportConf    `json:"report"`
	RateLimit    RateLimitConf `json:"rateLimit"`
	LogConf      LogConf       `json:"log"`
}

type HttpServConf struct {
	Host    string `json:"host" validate:"required"`
	Port    string `json:"port" validate:"required,is-number"`
	BaseURL string `json:"baseURL"`
}

// GetAddress возвращает строку host:port для запуска HTTP-сервера.
func (s *HttpServConf) GetAddress() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

type DbConf struct {
	Host     string `json:"host" validate:"required"`
	Port     string `json:"port" validate:"required,is-number"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
	// TimeZone передаётся в сессию PostgreSQL, чтобы DATE(tg_date) считался в том же календаре, что и отчёт.
	TimeZone string `json:"timeZone" validate:"omitempty,timezone"`
}

// ConnString собирает DSN для pgxpool.
func (d *DbConf) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
	)
}

type RedisConf struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr" validate:"required_if=Enabled true"`
	Password string `json:"password"`
	DB       int    `json:"db" validate:"min=0"`
	Prefix   string `json:"prefix"`
}

type ReportConf struct {
	// TimeZone задаёт календарь отчётов и часовой пояс сессии PostgreSQL.
	TimeZone string `json:"timeZone" validate:"required,timezone"`
	// MaxRangeDays ограничивает длину запрашиваемого диапазона дат.
	// 0 - значение по умолчанию (366), -1 снимает ограничение.
	MaxRangeDays int `json:"maxRangeDays" validate:"min=-1"`
	// CacheTTL - строка в формате time.ParseDuration.
	CacheTTL string `json:"cacheTTL" validate:"omitempty,duration"`
}

// Location возвращает часовой пояс отчётов.
func (r *ReportConf) Location() *time.Location {
	if r.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		// Значение уже прошло валидацию в MustLoad.
		return time.Local
	}
	return loc
}

// RangeLimit возвращает ограничение длины диапазона в днях, 0 - без ограничения.
func (r *ReportConf) RangeLimit() int {
	if r.MaxRangeDays < 0 {
		return 0
	}
	return r.MaxRangeDays
}

// TTL возвращает время жизни закэшированных отчётов.
func (r *ReportConf) TTL() time.Duration {
	d, err := time.ParseDuration(r.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

type RateLimitConf struct {
	RequestsPerSecond float64 `json:"requestsPerSecond" validate:"min=0"`
	Burst             int     `json:"burst" validate:"min=0"`
	// TrustProxy включает разбор X-Forwarded-For/X-Real-IP. Только за доверенным прокси.
	TrustProxy bool `json:"trustProxy"`
	// IdleTTL - через сколько простоя клиент забывается, формат time.ParseDuration.
	IdleTTL string `json:"idleTTL" validate:"omitempty,duration"`
}

// Idle возвращает время простоя, после которого состояние клиента удаляется.
func (r *RateLimitConf) Idle() time.Duration {
	d, err := time.ParseDuration(r.IdleTTL)
	if err != nil {
		return 0
	}
	return d
}

type LogConf struct {
	Level  string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" validate:"omitempty,oneof=json text"`
}

// SlogLevel переводит текстовый уровень в slog.Level.
func (l *LogConf) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MustLoad читает файл конфигурации, применяет значения из окружения и валидирует структуру.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load - вариант MustLoad, возвращающий ошибку вместо паники.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file: %w", err)
	}

	// .env не обязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// DATE(tg_date) считается в часовом поясе сессии, он должен совпадать с календарём отчётов.
	if cfg.DBConf.TimeZone != cfg.ReportConf.TimeZone {
		return nil, fmt.Errorf("invalid config: dataBase.timeZone %q differs from report.timeZone %q",
			cfg.DBConf.TimeZone, cfg.ReportConf.TimeZone)
	}

	return &cfg, nil
}

// applyEnvOverrides подменяет поля конфигурации значениями из переменных окружения.
func applyEnvOverrides(cfg *Config) {
	override := func(key string, target *string) {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}

	override("HTTP_HOST", &cfg.HTTPServConf.Host)
	override("HTTP_PORT", &cfg.HTTPServConf.Port)
	override("HTTP_BASE_URL", &cfg.HTTPServConf.BaseURL)

	override("DB_HOST", &cfg.DBConf.Host)
	override("DB_PORT", &cfg.DBConf.Port)
	override("DB_USER", &cfg.DBConf.User)
	override("DB_PASSWORD", &cfg.DBConf.Password)
	override("DB_NAME", &cfg.DBConf.Name)
	override("DB_TIMEZONE", &cfg.DBConf.TimeZone)

	override("REDIS_ADDR", &cfg.RedisConf.Addr)
	override("REDIS_PASSWORD", &cfg.RedisConf.Password)
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.RedisConf.Enabled = enabled
		}
	}

	override("REPORT_TIMEZONE", &cfg.ReportConf.TimeZone)
	override("REPORT_CACHE_TTL", &cfg.ReportConf.CacheTTL)

	if val := os.Getenv("RATE_LIMIT_TRUST_PROXY"); val != "" {
		if trust, err := strconv.ParseBool(val); err == nil {
			cfg.RateLimit.TrustProxy = trust
		}
	}

	override("LOG_LEVEL", &cfg.LogConf.Level)
	override("LOG_FORMAT", &cfg.LogConf.Format)
}

// applyDefaults заполняет необязательные поля значениями по умолчанию.
func applyDefaults(cfg *Config) {
	if cfg.ReportConf.MaxRangeDays == 0 {
		cfg.ReportConf.MaxRangeDays = 366
	}
	if cfg.ReportConf.CacheTTL == "" {
		cfg.ReportConf.CacheTTL = "10m"
	}
	if cfg.DBConf.TimeZone == "" {
		cfg.DBConf.TimeZone = cfg.ReportConf.TimeZone
	}
	if cfg.RateLimit.IdleTTL == "" {
		cfg.RateLimit.IdleTTL = "10m"
	}
	if cfg.RedisConf.Prefix == "" {
		cfg.RedisConf.Prefix = "msgstats:"
	}
	if cfg.LogConf.Level == "" {
		cfg.LogConf.Level = "info"
	}
	if cfg.LogConf.Format == "" {
		cfg.LogConf.Format = "json"
	}
}

// newConfigValidator настраивает валидатор и регистрирует пользовательские проверки.
func newConfigValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("is-number", func(fl validator.FieldLevel) bool {
		return numberRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic("failed to register is-number validation: " + err.Error())
	}
	if err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	}); err != nil {
		panic("failed to register duration validation: " + err.Error())
	}
	return v
}
