package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"commerce-backoffice/internal/config"
	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/importer"
	productrepo "commerce-backoffice/internal/repository/product"
	productsvc "commerce-backoffice/internal/service/product"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to product CSV (sku,name,price,discountPrice,stock,status)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[importer] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, productsvc.New(productrepo.NewPostgres(pool, logger)))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatalf("import failed after %d products: %v", count, err)
	}

	logger.Printf("imported %d products in %s", count, time.Since(start).Truncate(time.Millisecond))
}
