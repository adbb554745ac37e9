package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodcart/internal/domain/coupon"
)

const sample = `code,discount_percent,branch_id,valid_from,valid_until
SALE10,10,,2025-01-01T00:00:00Z,2026-01-01T00:00:00Z
q1only,15,3,2025-01-01T00:00:00Z,2025-06-01T00:00:00Z
BROKEN,ten,,2025-01-01T00:00:00Z,2026-01-01T00:00:00Z
TOOFEW,10
BACKWARDS,5,,2026-01-01T00:00:00Z,2025-01-01T00:00:00Z
sale10,20,,2025-01-01T00:00:00Z,2026-01-01T00:00:00Z
`

func collect(t *testing.T, fn func(chan<- row) error) []row {
	t.Helper()
	out := make(chan row, 16)
	require.NoError(t, fn(out))
	close(out)
	var rows []row
	for r := range out {
		rows = append(rows, r)
	}
	return rows
}

func TestReadRows(t *testing.T) {
	rows := collect(t, func(out chan<- row) error {
		return readRows(context.Background(), "sample.csv", strings.NewReader(sample), out)
	})
	require.Len(t, rows, 4)

	assert.Equal(t, "SALE10", rows[0].input.Code)
	assert.Equal(t, int64(0), rows[0].branchID)
	assert.Equal(t, "sample.csv:2", rows[0].source)

	assert.Equal(t, int64(3), rows[1].branchID)
	assert.Equal(t, 15, rows[1].input.DiscountPercent)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), rows[1].input.ValidUntil)
}

func TestReadRows_BadHeader(t *testing.T) {
	out := make(chan row, 1)
	err := readRows(context.Background(), "bad.csv", strings.NewReader("code,percent,branch,from,until\n"), out)
	require.ErrorContains(t, err, "unexpected column")
}

func TestReadFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupons1.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	rows := collect(t, func(out chan<- row) error {
		return readFile(context.Background(), path, out)
	})
	assert.Len(t, rows, 4)
}

type memRepo struct {
	coupon.Repository
	byCode  map[string]*coupon.Coupon
	lookups int
}

func (m *memRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.lookups++
	if c, ok := m.byCode[code]; ok {
		return c, nil
	}
	return nil, coupon.ErrNotFound
}

func (m *memRepo) Create(_ context.Context, c *coupon.Coupon) error {
	if _, ok := m.byCode[c.Code]; ok {
		return coupon.ErrDuplicateCode
	}
	m.byCode[c.Code] = c
	return nil
}

func TestWrite(t *testing.T) {
	repo := &memRepo{byCode: map[string]*coupon.Coupon{"OLD": {Code: "OLD"}}}
	index := coupon.NewCodeIndex([]string{"OLD"}, 0.0001)
	svc := coupon.NewService(repo, index)

	rows := collect(t, func(out chan<- row) error {
		return readRows(context.Background(), "sample.csv", strings.NewReader(sample), out)
	})
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows = append(rows, row{input: coupon.CreateInput{
		Code: "old", DiscountPercent: 5, ValidFrom: from, ValidUntil: from.Add(time.Hour),
	}})

	queue := make(chan row, len(rows))
	for _, r := range rows {
		queue <- r
	}
	close(queue)

	res, err := write(context.Background(), repo, svc, index, queue)
	require.NoError(t, err)
	assert.Equal(t, stats{imported: 2, duplicates: 2, invalid: 1}, res)
	assert.Contains(t, repo.byCode, "Q1ONLY")
	assert.Equal(t, 10, repo.byCode["SALE10"].DiscountPercent)
}
