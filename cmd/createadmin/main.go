// Command createadmin creates a verified administrator account in the
// configured database. Passwords are read from the terminal without echo.
package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"github.com/pathwayfr/pathway/internal/adminctl"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/config"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
	"github.com/pathwayfr/pathway/internal/server/services"
	"golang.org/x/crypto/bcrypt"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := dbx.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if cfg.MigrateOnStart {
		if err := rm.RunMigrations(ctx, db); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	users := services.NewUserService(db, rm, auth.NewBcryptHasher(bcrypt.DefaultCost), logger)
	if _, err := adminctl.CreateAdmin(ctx, bufio.NewReader(os.Stdin), os.Stdout, users); err != nil {
		log.Printf("create admin: %v", err)
		os.Exit(1)
	}

}
