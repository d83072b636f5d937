package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/dbconfig"
)

// setupDatabase opens both handles the store needs: a database/sql
// connection for row writes and a pgx pool for bulk answer loads.
func setupDatabase(ctx context.Context) (*sql.DB, *pgxpool.Pool, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		database.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping pgx pool: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return database, pool, nil
}
