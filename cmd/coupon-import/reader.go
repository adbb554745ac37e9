package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/foodcart/internal/domain/coupon"
)

// header is the expected first line of every coupon file.
var header = []string{"code", "discount_percent", "branch_id", "valid_from", "valid_until"}

type row struct {
	source   string
	branchID int64
	input    coupon.CreateInput
}

// readFile streams a gzip-compressed CSV file into out. Lines that do not
// parse are logged and skipped.
func readFile(ctx context.Context, path string, out chan<- row) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return readRows(ctx, path, gz, out)
}

func readRows(ctx context.Context, source string, r io.Reader, out chan<- row) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err != nil {
		return errors.Wrapf(err, "read header of %s", source)
	}
	for i, name := range header {
		if !strings.EqualFold(strings.TrimSpace(first[i]), name) {
			return errors.Errorf("%s: unexpected column %q, want %q", source, first[i], name)
		}
	}

	var count int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("skip malformed line", slog.String("source", source), slog.String("error", err.Error()))
			continue
		}
		line, _ := cr.FieldPos(0)

		parsed, err := parseRecord(rec)
		if err != nil {
			slog.Warn("skip malformed line",
				slog.String("source", source),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		parsed.source = fmt.Sprintf("%s:%d", source, line)

		select {
		case out <- parsed:
			count++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	slog.Info("file read", slog.String("source", source), slog.Int("rows", count))
	return nil
}

func parseRecord(rec []string) (row, error) {
	percent, err := strconv.Atoi(strings.TrimSpace(rec[1]))
	if err != nil {
		return row{}, errors.Wrap(err, "discount_percent")
	}
	var branchID int64
	if s := strings.TrimSpace(rec[2]); s != "" {
		branchID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return row{}, errors.Wrap(err, "branch_id")
		}
	}
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[3]))
	if err != nil {
		return row{}, errors.Wrap(err, "valid_from")
	}
	until, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[4]))
	if err != nil {
		return row{}, errors.Wrap(err, "valid_until")
	}
	return row{
		branchID: branchID,
		input: coupon.CreateInput{
			Code:            rec[0],
			DiscountPercent: percent,
			ValidFrom:       from,
			ValidUntil:      until,
		},
	}, nil
}
