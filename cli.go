package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

const usage = `Usage: %s [options]

  Watches the docker daemon configured in the current environment and maintains
  DNS records at a DNS provider for the records declared in container labels.

  Options can be passed in as commandline flags, environment variables or a .env
  file in the working directory.
  Commandline flags take precedence over environment variables.

 Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage, os.Args[0])
		flag.PrintDefaults()
	}
}

// parseFlags reads the configuration from the commandline, falling back to the environment
func parseFlags() *config {
	// A missing .env file is not an error, variables already set take precedence
	_ = godotenv.Load()

	c := &config{}
	flag.StringVar(&c.Provider, "provider", os.Getenv("PROVIDER"), "The DNS provider to register the records with (env: `PROVIDER`, default: `cloudflare`, oneOf: [`cloudflare`, `dryrun`])")
	flag.StringVar(&c.AccountName, "account-name", os.Getenv("ACCOUNT_NAME"), "The account email used to authenticate with the DNS provider, leave empty to use an API token (env: `ACCOUNT_NAME`)")
	flag.StringVar(&c.AccountSecret, "account-secret", os.Getenv("ACCOUNT_SECRET"), "The API key or token used to authenticate with the DNS provider (env: `ACCOUNT_SECRET`)")
	flag.StringVar(&c.LabelPrefix, "label-prefix", os.Getenv("LABEL_PREFIX"), "The prefix of the container labels declaring records (env: `LABEL_PREFIX`, default: `dnsfik`)")
	flag.StringVar(&c.DefaultType, "default-type", os.Getenv("DEFAULT_TYPE"), "The record type of records inferred from routing rules (env: `DEFAULT_TYPE`, default: `A`)")
	flag.StringVar(&c.DefaultProxied, "default-proxied", os.Getenv("DEFAULT_PROXIED"), "Whether records are proxied by default (env: `DEFAULT_PROXIED`, default: `true`)")
	flag.StringVar(&c.DefaultTTL, "default-ttl", os.Getenv("DEFAULT_TTL"), "The default TTL of records, 1 means automatic (env: `DEFAULT_TTL`, default: `1`)")
	flag.StringVar(&c.RoutingInference, "traefik-inference", os.Getenv("TRAEFIK_INFERENCE"), "Infer records from traefik router rules (env: `TRAEFIK_INFERENCE`, default: `true`)")
	flag.StringVar(&c.RetryDelay, "retry-delay", os.Getenv("RETRY_DELAY"), "The delay before a failed DNS change is retried (env: `RETRY_DELAY`, default: `30s`)")
	flag.StringVar(&c.RetryBackoff, "retry-backoff", os.Getenv("RETRY_BACKOFF"), "How the retry delay grows between attempts (env: `RETRY_BACKOFF`, default: `fixed`, oneOf: [`fixed`, `exponential`])")
	flag.StringVar(&c.DrainInterval, "drain-interval", os.Getenv("DRAIN_INTERVAL"), "How often pending DNS changes are applied (env: `DRAIN_INTERVAL`, default: `5s`)")
	flag.StringVar(&c.AddressFreshness, "address-freshness", os.Getenv("ADDRESS_FRESHNESS"), "How long a resolved public address is reused (env: `ADDRESS_FRESHNESS`, default: `5m`)")
	flag.StringVar(&c.CheckInterval, "check-interval", os.Getenv("CHECK_INTERVAL"), "How often the public address is checked for changes (env: `CHECK_INTERVAL`, default: `5m`)")
	flag.StringVar(&c.RequestTimeout, "request-timeout", os.Getenv("REQUEST_TIMEOUT"), "The timeout of every call to the DNS provider and address sources (env: `REQUEST_TIMEOUT`, default: `10s`)")
	flag.StringVar(&c.Store, "store", os.Getenv("STORE"), "The store implementation that persists the resolved public addresses (env: `STORE`, default: `memory`, oneOf: [`memory`, `boltdb`])")
	flag.StringVar(&c.DataDir, "data-dir", os.Getenv("DATA_DIR"), "The directory holding the boltdb file (env: `DATA_DIR`, default: `.`)")
	flag.BoolVar(&c.DebugLogger, "debug-logger", os.Getenv("DEBUG_LOGGER") == "true", "Use a human readable debug logger (env: `DEBUG_LOGGER`)")
	flag.Parse()

	return c
}
