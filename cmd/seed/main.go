package main

import (
	"context"
	"log"
	"os"

	"commerce-backoffice/internal/config"
	"commerce-backoffice/internal/db"
	couponrepo "commerce-backoffice/internal/repository/coupon"
	customerrepo "commerce-backoffice/internal/repository/customer"
	productrepo "commerce-backoffice/internal/repository/product"
	tokenrepo "commerce-backoffice/internal/repository/token"
	"commerce-backoffice/internal/seed"
	authsvc "commerce-backoffice/internal/service/auth"
	couponsvc "commerce-backoffice/internal/service/coupon"
	productsvc "commerce-backoffice/internal/service/product"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	deps := seed.Deps{
		Products: productsvc.New(productrepo.NewPostgres(pool, logger)),
		Coupons:  couponsvc.New(couponrepo.NewPostgres(pool, logger), logger),
		Accounts: authsvc.New(customerrepo.NewPostgres(pool, logger), tokenrepo.NewPostgres(pool)),
		Logger:   logger,
	}
	admin := seed.Admin{Email: cfg.SeedAdminEmail, Password: cfg.SeedAdminPassword}
	if err := seed.Apply(ctx, deps, admin); err != nil {
		logger.Fatalf("seed apply: %v", err)
	}

	logger.Println("seed applied")
}
