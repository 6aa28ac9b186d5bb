package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-auth-service/internal/auth"
	"github.com/iliyamo/secure-auth-service/internal/config"
	"github.com/iliyamo/secure-auth-service/internal/database"
	"github.com/iliyamo/secure-auth-service/internal/handler"
	"github.com/iliyamo/secure-auth-service/internal/queue"
	"github.com/iliyamo/secure-auth-service/internal/repository"
	"github.com/iliyamo/secure-auth-service/internal/router"
	"github.com/iliyamo/secure-auth-service/internal/store"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	priv, pub, err := token.LoadKeys(cfg.PrivateKeyPEM, cfg.PublicKeyPEM)
	if err != nil {
		log.Fatalf("load signing keys: %v", err)
	}
	codec := token.NewCodec(priv, pub, cfg.AccessTTL, cfg.RefreshTTL)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unreachable at startup; token revocation and rate limiting degraded")
	}
	revocations := store.NewRevocationStore(rdb, cfg.StoreTimeout)
	actions := store.NewActionTokenStore(rdb, cfg.StoreTimeout)

	authn := auth.NewAuthenticator(codec, revocations)
	users := repository.NewUserRepo(db)

	authHandler := handler.NewAuthHandler(cfg, users, authn, codec, actions)
	userHandler := handler.NewUserHandler(cfg, users, authn, codec, actions)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, authn, config.LoadRateLimitConfig(), rdb)
	router.RegisterUsers(e, userHandler, authn)

	go func() {
		if err := queue.StartMailConsumer(); err != nil {
			log.Printf("mail consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
