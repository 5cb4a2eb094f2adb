package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Encryption selects the transport security used when talking to a
// mail server.
type Encryption string

const (
	EncryptionSSL      Encryption = "SSL"
	EncryptionSTARTTLS Encryption = "STARTTLS"
	EncryptionNone     Encryption = "NONE"
)

// Valid reports whether e is one of the known encryption modes.
func (e Encryption) Valid() bool {
	switch e {
	case EncryptionSSL, EncryptionSTARTTLS, EncryptionNone:
		return true
	}
	return false
}

// Server holds the credentials for one protocol endpoint of an
// account (mailbox access or submission).
type Server struct {
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	Username   string     `yaml:"username"`
	Password   string     `yaml:"password"`
	Encryption Encryption `yaml:"encryption"`
}

// Addr returns the host:port dial address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Server) validate(proto string) error {
	if s.Host == "" {
		return fmt.Errorf("%s: host is required", proto)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%s: invalid port %d", proto, s.Port)
	}
	if !s.Encryption.Valid() {
		return fmt.Errorf("%s: invalid encryption %q", proto, s.Encryption)
	}
	return nil
}

// Account pairs the IMAP and SMTP settings of one configured mail
// account. ID is the opaque key used by the connection cache.
type Account struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	IMAP Server `yaml:"imap"`
	SMTP Server `yaml:"smtp"`
}

type Config struct {
	// TimeoutSeconds bounds dials and in-flight protocol commands.
	TimeoutSeconds int       `yaml:"timeout_seconds"`
	Accounts       []Account `yaml:"accounts"`
}

// Timeout returns the configured operation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Account returns the account with the given id, or nil.
func (c *Config) Account(id int64) *Account {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return &c.Accounts[i]
		}
	}
	return nil
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{
		TimeoutSeconds: 120,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid timeout_seconds: %d", cfg.TimeoutSeconds)
	}

	seen := make(map[int64]bool)
	for i := range cfg.Accounts {
		acct := &cfg.Accounts[i]
		if seen[acct.ID] {
			return nil, fmt.Errorf("duplicate account id %d", acct.ID)
		}
		seen[acct.ID] = true

		if acct.IMAP.Encryption == "" {
			acct.IMAP.Encryption = EncryptionNone
		}
		if acct.SMTP.Encryption == "" {
			acct.SMTP.Encryption = EncryptionNone
		}
		if err := acct.IMAP.validate("imap"); err != nil {
			return nil, fmt.Errorf("account %d: %w", acct.ID, err)
		}
		if err := acct.SMTP.validate("smtp"); err != nil {
			return nil, fmt.Errorf("account %d: %w", acct.ID, err)
		}
	}

	return cfg, nil
}
