package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/cafe-pos/internal/config"
	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/ariefcatur/cafe-pos/internal/postgres"
	"github.com/ariefcatur/cafe-pos/internal/seed"
	"github.com/ariefcatur/cafe-pos/internal/sqlite"
)

type target interface {
	seed.Target
	Close() error
}

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	path := flag.String("file", "catalog.yaml", "catalog YAML file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}
	rate, _ := cfg.TaxRate()
	defaults := orders.TaxPolicy{Rate: rate, IncludedInPrice: cfg.DefaultTaxIncluded}

	fh, err := os.Open(*path)
	if err != nil {
		log.Error("open catalog", "error", err)
		os.Exit(1)
	}
	defer fh.Close()
	f, err := seed.Parse(fh)
	if err != nil {
		log.Error("parse catalog", "file", *path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var st target
	if cfg.StoreDriver == "sqlite" {
		st, err = sqlite.Open(ctx, cfg.SQLitePath, defaults)
	} else {
		st, err = postgres.Open(ctx, cfg.PostgresDSN, defaults)
	}
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	n, err := f.Apply(ctx, st)
	if err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
	log.Info("catalog seeded", "products", n, "driver", cfg.StoreDriver)
}
