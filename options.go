package affilink

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/transport/feed"
	autolinkuc "github.com/kailas-cloud/affilink/internal/usecase/autolink"
	queueuc "github.com/kailas-cloud/affilink/internal/usecase/queue"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "memory", "valkey" or "redis"
	addrs     []string
	password  string
	keyPrefix string

	sources    []Source
	feeds      []feed.Config
	cacheTTL   time.Duration
	searchTTL  time.Duration
	autolink   autolinkuc.Settings
	queue      queueuc.Config
	background bool

	logger *zap.Logger
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		autolink: autolinkuc.DefaultSettings(),
		queue:    queueuc.DefaultConfig(),
		logger:   zap.NewNop(),
	}
}

// WithMemory keeps all state in process memory. Nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithValkey connects to Valkey at the given addresses.
func WithValkey(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = addrs
	})
}

// WithRedis connects to Redis at the given addresses.
func WithRedis(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
	})
}

// WithPassword sets the database password.
func WithPassword(password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.password = password
	})
}

// WithKeyPrefix namespaces every database key. Defaults to "affilink:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithSource registers a catalog source. Sources are queried in registration order.
func WithSource(s Source) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, s)
	})
}

// WithFeed registers a JSON product feed source with default throttling.
func WithFeed(id, baseURL, token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.feeds = append(c.feeds, feed.Config{ID: id, BaseURL: baseURL, Token: token})
	})
}

// WithCacheTTL sets how long fetched products and search results are cached.
// Non-positive values keep the defaults (24h and 12h).
func WithCacheTTL(product, search time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = product
		c.searchTTL = search
	})
}

// WithAutoLink replaces the auto-link settings.
func WithAutoLink(s AutoLinkSettings) Option {
	return optionFunc(func(c *clientConfig) {
		c.autolink = s
	})
}

// WithQueue replaces the queue settings.
func WithQueue(q QueueSettings) Option {
	return optionFunc(func(c *clientConfig) {
		c.queue = q
	})
}

// WithBackgroundWorker drains the queue from a background goroutine until Close.
// Without it, call Drain.
func WithBackgroundWorker() Option {
	return optionFunc(func(c *clientConfig) {
		c.background = true
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	})
}
