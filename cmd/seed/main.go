package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"thientam/internal/bookcategory"
	"thientam/internal/logger"
	"thientam/internal/reading"
	"thientam/internal/topic"
	"thientam/internal/user"
	"thientam/pkg/database"
)

type options struct {
	File       string `long:"file" short:"f" env:"SEED_FILE" default:"./data/seed.yaml" description:"YAML seed document"`
	SpreadDays int    `long:"spread-days" env:"SEED_SPREAD_DAYS" default:"45" description:"Undated readings are laid out over today±N days"`

	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"mongo" description:"Storage backend"`
	SQLitePath string `long:"sqlite-path" env:"SQLITE_PATH" default:"./data/thientam.db" description:"SQLite database file"`
	MongoURI   string `long:"mongo-uri" env:"MONGO_URI" default:"mongodb://localhost:27017" description:"MongoDB connection string"`
	MongoDB    string `long:"mongo-db" env:"MONGO_DB" default:"buddhist_readings" description:"MongoDB database name"`

	AdminEmail    string `long:"admin-email" env:"ADMIN_EMAIL" default:"admin@thientam.local" description:"Admin account to create or update"`
	AdminPassword string `long:"admin-password" env:"ADMIN_PASSWORD" description:"Admin password; the admin step is skipped when empty"`
	AdminName     string `long:"admin-name" env:"ADMIN_NAME" default:"Quản trị viên" description:"Admin display name"`

	Env string `long:"env" env:"APP_ENV" default:"development" description:"development or production"`
}

func main() {
	_ = godotenv.Load()
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	log, err := logger.New(opts.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), opts, log); err != nil {
		log.Error("seed failed", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *logger.Logger) error {
	doc, err := database.LoadSeed(opts.File)
	if err != nil {
		return err
	}
	s, closeFn, err := openTargets(ctx, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	s.log = log
	s.spreadDays = opts.SpreadDays
	res, err := s.apply(ctx, doc, time.Now())
	if err != nil {
		return err
	}
	log.Info("seed data applied",
		"topics", res.Topics, "readings", res.Readings, "book_categories", res.BookCategories, "skipped", res.Skipped)

	if opts.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set, admin account untouched")
		return nil
	}
	created, err := s.upsertAdmin(ctx, opts.AdminEmail, opts.AdminPassword, opts.AdminName)
	if err != nil {
		return err
	}
	log.Info("admin account ready", "email", opts.AdminEmail, "created", created)
	return nil
}

func openTargets(ctx context.Context, opts options) (*seeder, func(), error) {
	if opts.DBDriver == "mongo" {
		client, err := database.ConnectMongo(ctx, opts.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(opts.MongoDB)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		s := &seeder{
			topics:     topic.NewMongoStore(db),
			readings:   reading.NewMongoStore(db),
			categories: bookcategory.NewMongoStore(db),
			users:      user.NewMongoStore(db),
		}
		return s, func() { _ = client.Disconnect(context.Background()) }, nil
	}

	db, err := database.Open(opts.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return sqlSeeder(db), func() { db.Close() }, nil
}

func sqlSeeder(db *sql.DB) *seeder {
	return &seeder{
		topics:     topic.NewSQLStore(db),
		readings:   reading.NewSQLStore(db),
		categories: bookcategory.NewSQLStore(db),
		users:      user.NewSQLStore(db),
	}
}
