// Backstage - schema-driven admin console for the studio site.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/atelierhq/backstage/internal/api"
	"github.com/atelierhq/backstage/internal/auth"
	"github.com/atelierhq/backstage/internal/config"
	"github.com/atelierhq/backstage/internal/database"
	"github.com/atelierhq/backstage/internal/entity"
	"github.com/atelierhq/backstage/internal/logger"
	"github.com/atelierhq/backstage/internal/manager"
	"github.com/atelierhq/backstage/internal/media"
	"github.com/atelierhq/backstage/internal/models"
	"github.com/atelierhq/backstage/internal/schema"
)

var Version = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		runCLI()
		return
	}
	startServer()
}

func startServer() {
	cfg, log := mustLoad()
	log.Info().Str("version", Version).Msg("backstage starting")

	db := connectDB(cfg, log)
	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	store := entity.NewStore(db, log)
	mgr := manager.New(store, log)

	// Warm the priority tables so the first console request does not
	// pay the load cost. Failures are retried lazily on access.
	for _, table := range schema.PriorityTables() {
		if err := mgr.Load(context.Background(), table); err != nil {
			log.Warn().Err(err).Str("table", string(table)).Msg("initial table load failed")
		}
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiryH)
	authService := auth.NewService(db, jwtService, log)

	mediaStore, err := media.New(context.Background(), cfg.Media, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("media store init failed")
	}

	contentHandler := api.NewContentHandler(store, log)
	authHandler := api.NewAuthHandler(authService, log)
	defer authHandler.Close()
	adminHandler := api.NewAdminHandler(mgr, store, mediaStore, log)
	router := api.SetupRouter(cfg, jwtService, contentHandler, authHandler, adminHandler)

	log.Info().Str("port", cfg.Server.Port).Msg("server listening")
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func mustLoad() (*config.Config, zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, log
}

func connectDB(cfg *config.Config, log zerolog.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	return db
}

// =============================================================================
// CLI
// =============================================================================

func runCLI() {
	switch os.Args[1] {
	case "serve":
		startServer()
	case "migrate":
		cfg, log := mustLoad()
		db := connectDB(cfg, log)
		if err := database.RunMigrations(db, log); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		fmt.Println("Migrations complete")
	case "user":
		runUserCmd()
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: backstage <command>
Commands:
  serve                                  Start server
  migrate                                Run migrations
  user list                              List users
  user create --email= --password= [--role=admin]  Create user`)
}

func runUserCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	cfg, log := mustLoad()
	db := connectDB(cfg, log)

	switch os.Args[2] {
	case "list":
		var users []models.User
		db.Find(&users)
		for _, u := range users {
			fmt.Printf("%s <%s> [%s]\n", u.DisplayName, u.Email, u.Role)
		}
	case "create":
		email := getFlag("--email")
		password := getFlag("--password")
		role := getFlag("--role")
		if email == "" || password == "" {
			printUsage()
			return
		}
		if role == "" {
			role = models.RoleAdmin
		}
		jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiryH)
		svc := auth.NewService(db, jwtService, log)
		user, err := svc.CreateUser(context.Background(), email, password, role)
		if err != nil {
			log.Fatal().Err(err).Msg("user creation failed")
		}
		fmt.Printf("User created: %s [%s]\n", user.Email, user.Role)
	default:
		printUsage()
	}
}

func getFlag(name string) string {
	for _, arg := range os.Args {
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v
		}
	}
	return ""
}
