package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	"github.com/offlabel-design/launchbase/internal/pkg/cache"
	"github.com/offlabel-design/launchbase/internal/pkg/database"
	"github.com/offlabel-design/launchbase/internal/pkg/env"
	"github.com/offlabel-design/launchbase/internal/pkg/router"
)

func main() {
	app, db := NewApplication()

	// graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("server shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if closeErr := database.Close(db); closeErr != nil {
		log.Printf("closing database failed: %v", closeErr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *gorm.DB) {
	env.SetupEnvFile()

	// Webhook verification fails closed at request time, but a missing secret
	// outside dev is a deployment error worth failing fast on.
	if env.GetEnv("STRIPE_WEBHOOK_SECRET", "") == "" && !env.IsDev() {
		log.Fatal("STRIPE_WEBHOOK_SECRET is not configured")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	cache.SetupCache()

	if err := billing.SeedPlanMappings(db, map[string]string{
		env.GetEnv("STRIPE_PRICE_PRO", ""): "pro",
	}); err != nil {
		log.Fatalf("seeding plan mappings failed: %v", err)
	}

	engine := html.New("./views", ".html")
	app := fiber.New(fiber.Config{
		Views: engine,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())
	app.Static("/", "./public/assets")

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, db)

	return app, db
}
