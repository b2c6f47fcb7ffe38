package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
// The zone file is not part of it; it is the single command line argument.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Listen is the IP address the UDP socket binds to.
	Listen string `koanf:"listen" validate:"required,ip"`

	// Port is the network port the DNS server will bind to.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// Upstream is a list of upstream DNS servers in ip:port format. Misses are
	// forwarded to them in turn.
	Upstream []string `koanf:"upstream" validate:"required,min=1,dive,ip_port"`

	// CacheSize bounds the number of distinct name/type/class keys cached.
	CacheSize uint `koanf:"cache_size" validate:"required,gte=1"`

	// DisableCache disables caching of upstream replies when set to true.
	DisableCache bool `koanf:"disable_cache"`

	// CacheSnapshot is the bbolt file the cache is saved to on shutdown and
	// restored from on startup. Empty disables persistence.
	CacheSnapshot string `koanf:"cache_snapshot"`

	PendingTimeout    time.Duration `koanf:"pending_timeout" validate:"gt=0"`
	PendingCapacity   int           `koanf:"pending_capacity" validate:"gte=1,lte=65536"`
	ServfailOnTimeout bool          `koanf:"servfail_on_timeout"`
	JanitorInterval   time.Duration `koanf:"janitor_interval" validate:"gt=0"`

	// Workers is the number of goroutines handling datagrams.
	Workers int `koanf:"workers" validate:"gte=1"`

	// QueueSize is how many received datagrams may wait for a worker before
	// new ones are dropped.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:               "prod",
	LogLevel:          "info",
	Listen:            "127.0.0.1",
	Port:              53,
	Upstream:          []string{"1.1.1.1:53", "1.0.0.1:53"},
	CacheSize:         1000,
	DisableCache:      false,
	CacheSnapshot:     "",
	PendingTimeout:    5 * time.Second,
	PendingCapacity:   4096,
	ServfailOnTimeout: true,
	JanitorInterval:   time.Second,
	Workers:           4,
	QueueSize:         256,
}

// Address returns the listen address in host:port form.
func (c *AppConfig) Address() string {
	return net.JoinHostPort(c.Listen, strconv.Itoa(c.Port))
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be in the format "IP:Port".
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "DNS_". Keys are
// lowercased with the prefix removed, and values holding spaces or commas
// become lists. It is a variable so tests can replace it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "ip_port" tag with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
