package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SIGTERM-015/dnsfik/labels"
	"github.com/SIGTERM-015/dnsfik/queue"
	"github.com/SIGTERM-015/dnsfik/types"
)

type config struct {
	Provider         string `json:"provider"`
	AccountName      string `json:"account-name"`
	AccountSecret    string `json:"account-secret"`
	LabelPrefix      string `json:"label-prefix"`
	DefaultType      string `json:"default-type"`
	DefaultProxied   string `json:"default-proxied"`
	DefaultTTL       string `json:"default-ttl"`
	RoutingInference string `json:"traefik-inference"`
	RetryDelay       string `json:"retry-delay"`
	RetryBackoff     string `json:"retry-backoff"`
	DrainInterval    string `json:"drain-interval"`
	AddressFreshness string `json:"address-freshness"`
	CheckInterval    string `json:"check-interval"`
	RequestTimeout   string `json:"request-timeout"`
	Store            string `json:"store"`
	DataDir          string `json:"data-dir"`
	DebugLogger      bool   `json:"debug-logger"`
}

func (c *config) String() string {
	return fmt.Sprintf(
		"{\"provider\": \"%s\", \"account-name\": \"%s\", \"account-secret\": \"%s\", \"label-prefix\": \"%s\", \"default-type\": \"%s\", \"default-proxied\": \"%s\", \"default-ttl\": \"%s\", \"traefik-inference\": \"%s\", \"retry-delay\": \"%s\", \"retry-backoff\": \"%s\", \"drain-interval\": \"%s\", \"address-freshness\": \"%s\", \"check-interval\": \"%s\", \"request-timeout\": \"%s\", \"store\": \"%s\", \"data-dir\": \"%s\", \"debug-logger\": \"%t\"}",
		c.Provider,
		c.AccountName,
		"****",
		c.LabelPrefix,
		c.DefaultType,
		c.DefaultProxied,
		c.DefaultTTL,
		c.RoutingInference,
		c.RetryDelay,
		c.RetryBackoff,
		c.DrainInterval,
		c.AddressFreshness,
		c.CheckInterval,
		c.RequestTimeout,
		c.Store,
		c.DataDir,
		c.DebugLogger,
	)
}

// Validate checks each Property of config and provides default values
func (c *config) Validate() []error {
	var errs []error
	validate := func(field *string, validator func(string) (string, error)) {
		value, err := validator(*field)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*field = value
	}

	validate(&c.Provider, validateProvider)
	validate(&c.AccountName, validateAccountName)
	validate(&c.AccountSecret, validateAccountSecret)
	validate(&c.LabelPrefix, validateLabelPrefix)
	validate(&c.DefaultType, validateDefaultType)
	validate(&c.DefaultProxied, validateBool("default-proxied", true))
	validate(&c.DefaultTTL, validateDefaultTTL)
	validate(&c.RoutingInference, validateBool("traefik-inference", true))
	validate(&c.RetryDelay, validateDuration("retry-delay", 30*time.Second))
	validate(&c.RetryBackoff, validateRetryBackoff)
	validate(&c.DrainInterval, validateDuration("drain-interval", 5*time.Second))
	validate(&c.AddressFreshness, validateDuration("address-freshness", 5*time.Minute))
	validate(&c.CheckInterval, validateDuration("check-interval", 5*time.Minute))
	validate(&c.RequestTimeout, validateDuration("request-timeout", 10*time.Second))
	validate(&c.Store, validateStore)
	validate(&c.DataDir, validateDataDir)
	if c.Provider == "cloudflare" && c.AccountSecret == "" {
		errs = append(errs, fmt.Errorf("The `cloudflare` provider requires an account-secret"))
	}
	return errs
}

// validateProvider normalizes Provider and checks that it is part of the list of allowable values
func validateProvider(provider string) (string, error) {
	switch sanitize(provider) {
	case "":
		return "cloudflare", nil
	case "cloudflare":
		return "cloudflare", nil
	case "dryrun":
		return "dryrun", nil
	default:
		return "", fmt.Errorf("Invalid provider `%s` specified. Available providers: [`cloudflare`, `dryrun`]", provider)
	}
}

// validateAccountName is a noop, any string passes
func validateAccountName(accountName string) (string, error) {
	return accountName, nil
}

// validateAccountSecret is a noop, any string passes
func validateAccountSecret(accountSecret string) (string, error) {
	return accountSecret, nil
}

// validateLabelPrefix sets a default and strips a trailing dot. Label keys are case sensitive.
func validateLabelPrefix(prefix string) (string, error) {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "dnsfik", nil
	}
	return prefix, nil
}

// validateDefaultType checks that the type is one of the supported record types
func validateDefaultType(recordType string) (string, error) {
	if sanitize(recordType) == "" {
		return string(types.A), nil
	}
	value, ok := types.ParseRecordType(recordType)
	if !ok {
		return "", fmt.Errorf("Invalid default-type `%s` specified. Available types: [`A`, `AAAA`, `CNAME`, `TXT`, `MX`]", recordType)
	}
	return string(value), nil
}

// validateDefaultTTL checks that the TTL is a positive integer
func validateDefaultTTL(ttl string) (string, error) {
	ttl = sanitize(ttl)
	if ttl == "" {
		return "1", nil
	}
	value, err := strconv.Atoi(ttl)
	if err != nil || value < 1 {
		return "", fmt.Errorf("Invalid default-ttl `%s` specified. `%s` must be a positive integer", ttl, ttl)
	}
	return strconv.Itoa(value), nil
}

func validateBool(name string, fallback bool) func(string) (string, error) {
	return func(value string) (string, error) {
		value = sanitize(value)
		if value == "" {
			return strconv.FormatBool(fallback), nil
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("Invalid %s `%s` specified. `%s` must be one of [`true`, `false`]", name, value, value)
		}
		return strconv.FormatBool(parsed), nil
	}
}

func validateDuration(name string, fallback time.Duration) func(string) (string, error) {
	return func(value string) (string, error) {
		value = sanitize(value)
		if value == "" {
			return fallback.String(), nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return "", fmt.Errorf("Invalid %s `%s` specified. `%s` must be a positive duration like `30s` or `5m`", name, value, value)
		}
		return parsed.String(), nil
	}
}

func validateRetryBackoff(backoff string) (string, error) {
	switch sanitize(backoff) {
	case "":
		return "fixed", nil
	case "fixed":
		return "fixed", nil
	case "exponential":
		return "exponential", nil
	default:
		return "", fmt.Errorf("Invalid retry-backoff `%s` specified. Available strategies: [`fixed`, `exponential`]", backoff)
	}
}

func validateStore(store string) (string, error) {
	switch sanitize(store) {
	case "memory":
		return "memory", nil
	case "boltdb":
		return "boltdb", nil
	case "":
		return "memory", nil
	default:
		return "", fmt.Errorf("Invalid store `%s` provided. Available store implementations: [`memory`, `boltdb`]", store)
	}
}

// validateDataDir sets a default, any path is valid
func validateDataDir(dataDir string) (string, error) {
	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		return ".", nil
	}
	return dataDir, nil
}

func sanitize(value string) string {
	return strings.Trim(strings.ToLower(value), " \t")
}

// The getters below assume Validate succeeded

func (c *config) labelsConfig() labels.Config {
	recordType, _ := types.ParseRecordType(c.DefaultType)
	ttl, _ := strconv.Atoi(c.DefaultTTL)
	return labels.Config{
		Prefix:           c.LabelPrefix,
		DefaultType:      recordType,
		DefaultProxied:   c.DefaultProxied == "true",
		DefaultTTL:       ttl,
		RoutingInference: c.RoutingInference == "true",
	}
}

func (c *config) queueConfig() queue.Config {
	return queue.Config{
		RetryDelay:  duration(c.RetryDelay),
		Exponential: c.RetryBackoff == "exponential",
		Timeout:     duration(c.RequestTimeout),
	}
}

func duration(value string) time.Duration {
	parsed, _ := time.ParseDuration(value)
	return parsed
}
