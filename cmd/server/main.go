package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/database"
	"github.com/iliyamo/gym-management/internal/handler"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/router"
)

func main() {
	_ = godotenv.Load() // best-effort; real deployments set env directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response caching disabled")
	}

	// Background consumer that appends activity events to logs/activity.log.
	go func() { _ = queue.StartActivityConsumer() }()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	gyms := repository.NewGymRepo(db)
	staff := repository.NewStaffRepo(db)

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	gymHandler := handler.NewGymHandler(gyms, staff)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, users, rdb)
	router.RegisterGyms(e, gymHandler, cfg.JWTSecret, users, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
