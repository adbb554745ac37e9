package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/repository"
)

const (
	indexFPR      = 0.001
	progressEvery = 1000
	queueSize     = 256
)

type stats struct {
	imported, duplicates, invalid int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing coupons*.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "coupons*.csv.gz"))
		if err != nil {
			slog.Error("glob data dir", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = matches
	}
	if len(files) == 0 {
		slog.Error("no coupon files found", slog.String("data_dir", dataDir))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewCouponRepository(pool)
	codes, err := repo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list existing codes")
	}
	index := coupon.NewCodeIndex(codes, indexFPR)
	slog.Info("indexed existing codes", slog.Int("count", len(codes)))

	queue := make(chan row, queueSize)
	g, gctx := errgroup.WithContext(ctx)

	var readers errgroup.Group
	for _, f := range files {
		readers.Go(func() error {
			return readFile(gctx, f, queue)
		})
	}
	g.Go(func() error {
		defer close(queue)
		return readers.Wait()
	})

	var res stats
	g.Go(func() error {
		var err error
		res, err = write(gctx, repo, coupon.NewService(repo, index), index, queue)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("imported", res.imported),
		slog.Int("duplicates", res.duplicates),
		slog.Int("invalid", res.invalid),
	)
	return nil
}

// write stores rows one by one. A code the index may contain is looked up
// first so that known duplicates never reach an INSERT.
func write(
	ctx context.Context,
	repo coupon.Repository,
	svc *coupon.Service,
	index *coupon.CodeIndex,
	queue <-chan row,
) (stats, error) {
	var s stats
	for r := range queue {
		if index.MayContain(r.input.Code) {
			_, err := repo.FindByCode(ctx, coupon.NormalizeCode(r.input.Code))
			switch {
			case err == nil:
				s.duplicates++
				continue
			case !errors.Is(err, coupon.ErrNotFound):
				return s, errors.Wrapf(err, "look up %s", r.input.Code)
			}
		}

		_, err := svc.Import(ctx, r.branchID, r.input)
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			s.duplicates++
		case errors.Is(err, coupon.ErrInvalidCoupon):
			s.invalid++
			slog.Warn("skip invalid coupon",
				slog.String("source", r.source),
				slog.String("code", r.input.Code),
				slog.String("error", err.Error()),
			)
		case err != nil:
			return s, errors.Wrapf(err, "import %s", r.input.Code)
		default:
			s.imported++
			if s.imported%progressEvery == 0 {
				slog.Info("write progress", slog.Int("imported", s.imported))
			}
		}
	}
	return s, nil
}
