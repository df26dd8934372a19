// Package config собирает конфигурацию Nodeflow из значений по умолчанию,
// JSON файла и переменных окружения.
//
// Приоритет: окружение > файл > значения по умолчанию. Каждый слой
// меняет только явно заданные в нём ключи, в том числе на false и 0.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/goccy/go-json"

	"github.com/shaiso/Nodeflow/internal/cache"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Ошибки конфигурации.
var (
	ErrInvalidConcurrency  = errors.New("maxConcurrentNodes must be positive")
	ErrInvalidTimeout      = errors.New("nodeTimeoutMs must not be negative")
	ErrInvalidHistorySize  = errors.New("historySize must not be negative")
	ErrInvalidCacheBackend = errors.New("unknown cache backend")
	ErrMissingRedisAddr    = errors.New("redis cache requires redisAddr")
)

// Config — конфигурация процессов Nodeflow.
type Config struct {
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`

	// HTTPAddr — адрес HTTP API сервера.
	HTTPAddr string `json:"httpAddr"`

	// WorkerAddr — адрес remote node worker.
	WorkerAddr string `json:"workerAddr"`

	// ServerURL — базовый URL API для CLI.
	ServerURL string `json:"serverUrl"`

	// Engine
	MaxConcurrentNodes  int  `json:"maxConcurrentNodes"`
	NodeTimeoutMs       int  `json:"nodeTimeoutMs"`
	AllowConcurrentRuns bool `json:"allowConcurrentRuns"`
	HistorySize         int  `json:"historySize"`

	// RemoteURL — generic remote execution API для неизвестных типов узлов.
	RemoteURL string `json:"remoteUrl"`

	// Cache
	CacheBackend    string `json:"cacheBackend"`
	CacheMaxEntries int    `json:"cacheMaxEntries"`
	CacheTTLSec     int    `json:"cacheTtlSec"`
	RedisAddr       string `json:"redisAddr"`
	RedisPassword   string `json:"redisPassword"`
	RedisDB         int    `json:"redisDb"`
	RedisPrefix     string `json:"redisPrefix"`

	// DatabaseURL — Postgres для архива выполнений. Пусто — без архива.
	DatabaseURL string `json:"databaseUrl"`

	// RabbitMQURL — брокер для публикации событий. Пусто — без публикации.
	RabbitMQURL string `json:"rabbitmqUrl"`

	// Задержки переподключения к брокеру.
	RabbitMQBackoffMs    int `json:"rabbitmqBackoffMs"`
	RabbitMQMaxBackoffMs int `json:"rabbitmqMaxBackoffMs"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		LogLevel:           "INFO",
		LogFormat:          "json",
		HTTPAddr:           ":8080",
		WorkerAddr:         ":8090",
		ServerURL:          "http://localhost:8080",
		MaxConcurrentNodes: 4,
		NodeTimeoutMs:      int((5 * time.Minute).Milliseconds()),
		HistorySize:        100,
		CacheBackend:       CacheMemory,
		RedisPrefix:        cache.DefaultRedisPrefix,

		RabbitMQBackoffMs:    int(mq.DefaultBackoff.Initial.Milliseconds()),
		RabbitMQMaxBackoffMs: int(mq.DefaultBackoff.Max.Milliseconds()),
	}
}

// Load собирает конфигурацию. path — необязательный JSON файл.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	env, err := fromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := mergo.Map(cfg, env, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile декодирует JSON файл поверх cfg: отсутствующие ключи
// сохраняют текущие значения.
func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Переменные окружения → поля Config.
var (
	stringEnv = map[string]string{
		"LOG_LEVEL":              "LogLevel",
		"LOG_FORMAT":             "LogFormat",
		"NODEFLOW_HTTP_ADDR":     "HTTPAddr",
		"NODEFLOW_WORKER_ADDR":   "WorkerAddr",
		"NODEFLOW_SERVER_URL":    "ServerURL",
		"NODEFLOW_REMOTE_URL":    "RemoteURL",
		"NODEFLOW_CACHE_BACKEND": "CacheBackend",
		"NODEFLOW_REDIS_PREFIX":  "RedisPrefix",
		"REDIS_ADDR":             "RedisAddr",
		"REDIS_PASSWORD":         "RedisPassword",
		"DB_URL":                 "DatabaseURL",
		"RABBITMQ_URL":           "RabbitMQURL",
	}

	intEnv = map[string]string{
		"NODEFLOW_MAX_CONCURRENT_NODES": "MaxConcurrentNodes",
		"NODEFLOW_NODE_TIMEOUT_MS":      "NodeTimeoutMs",
		"NODEFLOW_HISTORY_SIZE":         "HistorySize",
		"NODEFLOW_CACHE_MAX_ENTRIES":    "CacheMaxEntries",
		"NODEFLOW_CACHE_TTL_SEC":        "CacheTTLSec",
		"NODEFLOW_MQ_BACKOFF_MS":        "RabbitMQBackoffMs",
		"NODEFLOW_MQ_MAX_BACKOFF_MS":    "RabbitMQMaxBackoffMs",
		"REDIS_DB":                      "RedisDB",
	}

	boolEnv = map[string]string{
		"NODEFLOW_ALLOW_CONCURRENT_RUNS": "AllowConcurrentRuns",
	}
)

// fromEnv возвращает заданные переменные окружения по имени поля Config.
// Незаданные переменные в результат не попадают; пустая строка задаёт
// пустое значение только для строковых полей.
func fromEnv(lookup func(string) (string, bool)) (map[string]any, error) {
	values := make(map[string]any)

	for key, field := range stringEnv {
		if v, ok := lookup(key); ok {
			values[field] = v
		}
	}

	for key, field := range intEnv {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		values[field] = n
	}

	for key, field := range boolEnv {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		values[field] = b
	}

	return values, nil
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.MaxConcurrentNodes <= 0 {
		return ErrInvalidConcurrency
	}
	if c.NodeTimeoutMs < 0 {
		return ErrInvalidTimeout
	}
	if c.HistorySize < 0 {
		return ErrInvalidHistorySize
	}

	switch c.CacheBackend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.CacheBackend)
	}
	return nil
}

// MQConnection возвращает параметры соединения с брокером событий.
func (c *Config) MQConnection(logger *slog.Logger) mq.ConnectionConfig {
	return mq.ConnectionConfig{
		URL: c.RabbitMQURL,
		Backoff: mq.Backoff{
			Initial: time.Duration(c.RabbitMQBackoffMs) * time.Millisecond,
			Max:     time.Duration(c.RabbitMQMaxBackoffMs) * time.Millisecond,
		},
		Logger: logger,
	}
}

// NodeTimeout возвращает таймаут узла по умолчанию.
func (c *Config) NodeTimeout() time.Duration {
	return time.Duration(c.NodeTimeoutMs) * time.Millisecond
}

// OpenCache создаёт хранилище результатов по CacheBackend.
//
// Для CacheNone возвращает nil хранилище. closeFn всегда не nil.
func (c *Config) OpenCache(ctx context.Context) (store cache.Store, closeFn func() error, err error) {
	noop := func() error { return nil }

	switch c.CacheBackend {
	case CacheNone:
		return nil, noop, nil

	case CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
			TTL:      time.Duration(c.CacheTTLSec) * time.Second,
		})
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil

	default:
		m, err := cache.NewMemory(c.CacheMaxEntries)
		if err != nil {
			return nil, noop, err
		}
		return m, noop, nil
	}
}

// Registry создаёт реестр встроенных узлов. При заданном RemoteURL
// типы без локального обработчика выполняются через remote API.
func (c *Config) Registry() *nodes.Registry {
	r := nodes.DefaultRegistry()
	if c.RemoteURL != "" {
		r.SetRemote(nodes.NewRemote(c.RemoteURL))
	}
	return r
}

// ExecutorConfig собирает executor.Config из настроек.
// store == nil отключает кэширование.
func (c *Config) ExecutorConfig(store cache.Store) executor.Config {
	return executor.Config{
		Registry:            c.Registry(),
		Cache:               store,
		DisableCache:        store == nil,
		MaxConcurrentNodes:  c.MaxConcurrentNodes,
		NodeTimeout:         c.NodeTimeout(),
		AllowConcurrentRuns: c.AllowConcurrentRuns,
		HistorySize:         c.HistorySize,
	}
}
