package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel      string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort      string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort    string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"5555"`
	WebSocketPort string `yaml:"websocket-port" env:"WEBSOCKET_PORT" env-default:"8080"`

	// MaxClients bounds concurrently joined identities; 0 disables the limit.
	MaxClients  int `yaml:"max-clients" env:"MAX_CLIENTS" env-default:"4"`
	MailboxSize int `yaml:"mailbox-size" env:"MAILBOX_SIZE" env-default:"64"`

	Redis         Redis `yaml:"redis"`
	ArchiveBuffer int   `yaml:"archive-buffer" env:"ARCHIVE_BUFFER" env-default:"128"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host    string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads path, applies env overrides and defaults, then validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func (that *Config) validate() error {
	switch {
	case that.MaxClients < 0:
		return fmt.Errorf("max-clients must not be negative, got %d", that.MaxClients)
	case that.MailboxSize < 1:
		return fmt.Errorf("mailbox-size must be positive, got %d", that.MailboxSize)
	case that.ArchiveBuffer < 1:
		return fmt.Errorf("archive-buffer must be positive, got %d", that.ArchiveBuffer)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
