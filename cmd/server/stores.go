package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"thientam/internal/audio"
	"thientam/internal/book"
	"thientam/internal/bookcategory"
	"thientam/internal/config"
	"thientam/internal/logger"
	"thientam/internal/reading"
	"thientam/internal/topic"
	"thientam/internal/user"
	"thientam/pkg/database"
)

// stores gom các store theo backend đã chọn
type stores struct {
	readings   reading.Store
	topics     topic.Store
	users      user.Store
	books      book.Store
	audios     audio.Store
	categories bookcategory.Store

	close func(context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	switch cfg.DBDriver {
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info("mongo connected", "db", cfg.MongoDB)
		return mongoStores(db, client), nil

	default:
		db, err := database.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		version, dirty, err := database.Migrate(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("sqlite ready", "path", cfg.SQLitePath, "schema_version", version, "dirty", dirty)
		return sqlStores(db), nil
	}
}

func sqlStores(db *sql.DB) *stores {
	return &stores{
		readings:   reading.NewSQLStore(db),
		topics:     topic.NewSQLStore(db),
		users:      user.NewSQLStore(db),
		books:      book.NewSQLStore(db),
		audios:     audio.NewSQLStore(db),
		categories: bookcategory.NewSQLStore(db),
		close:      func(context.Context) error { return db.Close() },
	}
}

func mongoStores(db *mongo.Database, client *mongo.Client) *stores {
	return &stores{
		readings:   reading.NewMongoStore(db),
		topics:     topic.NewMongoStore(db),
		users:      user.NewMongoStore(db),
		books:      book.NewMongoStore(db),
		audios:     audio.NewMongoStore(db),
		categories: bookcategory.NewMongoStore(db),
		close:      client.Disconnect,
	}
}
