package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/session"
	"github.com/xenking/foodcart/internal/repository"
)

type seedBranch struct {
	Name, Address, Phone string
	Foods                []seedFood
}

type seedFood struct {
	Name     string
	Price    int64
	Discount int
	Image    string
}

var branches = []seedBranch{
	{
		Name: "Quận 1", Address: "12 Lê Lợi, Quận 1", Phone: "028 3822 0001",
		Foods: []seedFood{
			{"Phở bò", 50000, 10, "https://images.foodcart.local/pho-bo.jpg"},
			{"Bún chả", 45000, 0, "https://images.foodcart.local/bun-cha.jpg"},
			{"Cơm tấm", 40000, 0, "https://images.foodcart.local/com-tam.jpg"},
		},
	},
	{
		Name: "Quận 3", Address: "88 Võ Văn Tần, Quận 3", Phone: "028 3930 0002",
		Foods: []seedFood{
			{"Phở bò", 55000, 0, "https://images.foodcart.local/pho-bo-q3.jpg"},
			{"Bánh mì", 25000, 20, "https://images.foodcart.local/banh-mi.jpg"},
		},
	},
}

func main() {
	var (
		databaseURL   string
		sessionSecret string
		tokenTTL      time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&sessionSecret, "session-secret", "", "secret used to mint demo tokens (or FOODCART_SESSION_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 30*24*time.Hour, "lifetime of the printed demo tokens")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if sessionSecret == "" {
		sessionSecret = os.Getenv("FOODCART_SESSION_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, sessionSecret, tokenTTL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, secret string, ttl time.Duration) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	branchIDs, err := seedCatalog(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool), branchIDs[0]); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if secret == "" {
		slog.Info("no session secret given, skipping demo tokens")
		return nil
	}
	return printTokens(session.NewIssuer([]byte(secret)), branchIDs[0], ttl)
}

// seedCatalog inserts the demo branches and foods unless branches exist.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	repo := repository.NewCatalogRepository(pool)

	var ids []int64
	existing, err := repo.ListBranches(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list branches")
	}
	if len(existing) > 0 {
		slog.Info("branches exist, skipping catalog", slog.Int("count", len(existing)))
		for _, b := range existing {
			ids = append(ids, b.ID)
		}
		return ids, nil
	}

	for _, b := range branches {
		var id int64
		err := pool.QueryRow(ctx,
			`INSERT INTO branches (name, address, phone) VALUES ($1, $2, $3) RETURNING id`,
			b.Name, b.Address, b.Phone,
		).Scan(&id)
		if err != nil {
			return nil, errors.Wrapf(err, "insert branch %q", b.Name)
		}
		ids = append(ids, id)

		for _, f := range b.Foods {
			food := &catalog.Food{
				BranchID:        id,
				Name:            f.Name,
				Price:           decimal.NewFromInt(f.Price),
				DiscountPercent: f.Discount,
				ImageURL:        f.Image,
			}
			if err := repo.CreateFood(ctx, food); err != nil {
				return nil, errors.Wrapf(err, "insert food %q", f.Name)
			}
		}
		slog.Info("seeded branch", slog.String("name", b.Name), slog.Int("foods", len(b.Foods)))
	}
	return ids, nil
}

func seedCoupons(ctx context.Context, repo coupon.Repository, branchID int64) error {
	now := time.Now().UTC()
	coupons := []coupon.Coupon{
		{Code: "SALE10", DiscountPercent: 10, ValidFrom: now.AddDate(0, -1, 0), ValidUntil: now.AddDate(1, 0, 0)},
		{Code: "Q1FRIEND", DiscountPercent: 15, BranchID: branchID, ValidFrom: now.AddDate(0, -1, 0), ValidUntil: now.AddDate(0, 6, 0)},
		{
			Code:            "TET2025",
			DiscountPercent: 20,
			ValidFrom:       time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
			ValidUntil:      time.Date(2025, 2, 5, 23, 59, 59, 0, time.UTC),
		},
	}
	for _, c := range coupons {
		c.Active = true
		err := repo.Create(ctx, &c)
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			slog.Info("coupon exists", slog.String("code", c.Code))
		case err != nil:
			return errors.Wrapf(err, "insert coupon %q", c.Code)
		default:
			slog.Info("seeded coupon", slog.String("code", c.Code), slog.Int("discount_percent", c.DiscountPercent))
		}
	}
	return nil
}

func printTokens(issuer *session.Issuer, branchID int64, ttl time.Duration) error {
	demo := []struct {
		label string
		sess  session.Session
	}{
		{"customer", session.Session{UserID: 1001, Role: session.RoleCustomer}},
		{"owner", session.Session{UserID: 2001, Role: session.RoleSeller, SellerMode: session.ModeOwner, BranchID: branchID}},
		{"staff", session.Session{UserID: 2002, Role: session.RoleSeller, SellerMode: session.ModeStaff, BranchID: branchID}},
	}
	for _, d := range demo {
		token, err := issuer.Mint(d.sess, ttl)
		if err != nil {
			return errors.Wrapf(err, "mint %s token", d.label)
		}
		fmt.Printf("%s\t%s\n", d.label, token)
	}
	return nil
}
