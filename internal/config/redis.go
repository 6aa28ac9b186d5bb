package config

// This file defines a Redis client constructor for the application. Redis
// backs the token revocation store (access-token blacklist, per-user refresh
// whitelist), single-use activation/recovery tokens, and login rate
// limiting. If the connection fails during startup the function returns nil
// and callers degrade gracefully: revocation guarantees weaken but request
// handling keeps working.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand (takes precedence if both are set)
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
//	REDIS_TLS_INSECURE_SKIP_VERIFY – disable certificate verification
//
// The returned client may be nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	pwd := os.Getenv("REDIS_PASSWORD")
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  pwd,
		DB:        dbNum,
		TLSConfig: redisTLSConfig(),
	})
	// Ping the server with a short timeout. Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}

// redisTLSConfig builds the TLS settings for the Redis connection. With
// REDIS_TLS enabled the server certificate is verified; skipping
// verification requires opting in separately, since revocation guarantees
// ride on this connection being the real Redis.
func redisTLSConfig() *tls.Config {
	if !envBool("REDIS_TLS", false) {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: envBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false)}
}
