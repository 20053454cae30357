package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"vendor-payout-ledger/config"
	"vendor-payout-ledger/pkg/logger"
	"vendor-payout-ledger/pkg/migrate"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-config path] <up|down|status|version|redo|reset> [args]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Database.IsMemory() {
		log.Fatal().Msg("migrations require the postgres driver")
	}

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	command := flag.Arg(0)
	if err := migrate.Run(context.Background(), db, command, flag.Args()[1:]...); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}
	log.Info().Str("command", command).Msg("Migration complete")
}
