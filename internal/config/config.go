// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Token lifetimes follow one explicit schema:
// access TTL is given in minutes, refresh TTL in days, action-token TTLs in
// seconds; everything is converted to time.Duration here and cookie max-age
// values are always derived in whole seconds. The identity token has no TTL
// of its own — it lives exactly as long as the refresh token.
type Config struct {
	Env  string // application environment (dev, test, prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	PrivateKeyPEM string // RSA signing key, PEM text
	PublicKeyPEM  string // RSA verification key, PEM text

	AccessTTL  time.Duration // access-token lifetime (ACCESS_TOKEN_TTL_MIN, minutes)
	RefreshTTL time.Duration // refresh- and identity-token lifetime (REFRESH_TOKEN_TTL_DAYS, days)

	ActivationTTL     time.Duration // activation-token lifetime (seconds)
	RecoveryTTL       time.Duration // recovery-token lifetime (seconds)
	ActivationEnabled bool
	RecoveryEnabled   bool
	Domain            string // public domain used to build activation/recovery links

	BcryptCost   int
	StoreTimeout time.Duration // per-call bound on revocation cache round-trips
}

// Load reads configuration values from environment variables. Required
// variables are enforced by must(); missing values exit with a fatal log
// message so the process never starts half-configured.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		PrivateKeyPEM: keyMaterial("JWT_PRIVATE_KEY"),
		PublicKeyPEM:  keyMaterial("JWT_PUBLIC_KEY"),

		AccessTTL:  time.Duration(mustInt("ACCESS_TOKEN_TTL_MIN")) * time.Minute,
		RefreshTTL: time.Duration(mustInt("REFRESH_TOKEN_TTL_DAYS")) * 24 * time.Hour,

		ActivationTTL:     time.Duration(envInt("ACTIVATION_TOKEN_TTL_SEC", 3600)) * time.Second,
		RecoveryTTL:       time.Duration(envInt("RECOVERY_TOKEN_TTL_SEC", 1800)) * time.Second,
		ActivationEnabled: envBool("FEATURE_ACTIVATION_ENABLED", true),
		RecoveryEnabled:   envBool("FEATURE_RECOVERY_ENABLED", true),
		Domain:            envStr("APP_DOMAIN", "localhost"),

		BcryptCost:   mustInt("BCRYPT_COST"),
		StoreTimeout: envDur("REVOCATION_STORE_TIMEOUT", time.Second),
	}
}

// keyMaterial resolves PEM text for a key: <NAME>_FILE points at a file on
// disk, otherwise the PEM is expected inline in <NAME> itself.
func keyMaterial(name string) string {
	if path := os.Getenv(name + "_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("cannot read %s_FILE: %v", name, err)
		}
		return string(b)
	}
	return must(name)
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
