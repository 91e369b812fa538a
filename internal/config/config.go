package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type OrderNumberMode string

const (
	// OrderNumberSubject uses the subject line verbatim.
	OrderNumberSubject OrderNumberMode = "subject"
	// OrderNumberTag extracts the digits following "Order#" in the subject.
	OrderNumberTag OrderNumberMode = "order_tag"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	LogLevel   string

	InvoiceSource   string
	OrderNumberMode OrderNumberMode
	ExtractWorkers  int

	GmailClientID        string
	GmailClientSecret    string
	GmailRedirectURI     string
	GmailRefreshToken    string
	GmailCredentialsPath string
	GmailTokenPath       string
	GmailQuery           string
	GmailRateLimitRPS    int

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		InvoiceSource:   getEnv("INVOICE_SOURCE", "Invoices"),
		OrderNumberMode: OrderNumberMode(strings.ToLower(strings.TrimSpace(getEnv("ORDER_NUMBER_MODE", string(OrderNumberSubject))))),
		ExtractWorkers:  getEnvInt("EXTRACT_WORKERS", 4),

		GmailClientID:        getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret:    getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:     getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken:    getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailCredentialsPath: getEnv("GMAIL_CREDENTIALS_PATH", filepath.Join(cwd, "credentials.json")),
		GmailTokenPath:       getEnv("GMAIL_TOKEN_PATH", filepath.Join(cwd, "token.json")),
		GmailQuery:           getEnv("GMAIL_QUERY", "subject:invoice"),
		GmailRateLimitRPS:    getEnvInt("GMAIL_RATE_LIMIT_RPS", 10),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 100),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 50),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	if err := cfg.OrderNumberMode.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (m OrderNumberMode) Validate() error {
	switch m {
	case OrderNumberSubject, OrderNumberTag:
		return nil
	default:
		return fmt.Errorf("unsupported ORDER_NUMBER_MODE: %q (want %s|%s)", string(m), OrderNumberSubject, OrderNumberTag)
	}
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
