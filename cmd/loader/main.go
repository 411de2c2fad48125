package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/partwise/parts-assistant/internal/catalog"
	"github.com/partwise/parts-assistant/internal/config"
	"github.com/partwise/parts-assistant/internal/infrastructure/bulkload"
	"github.com/partwise/parts-assistant/internal/infrastructure/repository/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	table := flag.String("table", "", "target table: parts, repairs, or blogs")
	file := flag.String("file", "", "xlsx or csv file to import")
	flag.Parse()
	if *table == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	written, err := bulkload.New(db, cat).LoadFile(ctx, *table, *file)
	if err != nil {
		log.Fatalf("load %s into %s: %v", *file, *table, err)
	}
	log.Printf("loaded %d rows from %s into %s", written, *file, *table)
}
