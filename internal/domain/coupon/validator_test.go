package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodcart/internal/domain/session"
)

type mockCouponRepo struct {
	coupons  map[string]*Coupon
	redeemed map[[2]int64]bool
	findErr  error
	lookups  int
	created  []*Coupon
}

func newMockRepo(cs ...*Coupon) *mockCouponRepo {
	m := &mockCouponRepo{coupons: map[string]*Coupon{}, redeemed: map[[2]int64]bool{}}
	for _, c := range cs {
		m.coupons[c.Code] = c
	}
	return m
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	if _, ok := m.coupons[c.Code]; ok {
		return ErrDuplicateCode
	}
	c.ID = int64(len(m.coupons) + 1)
	m.coupons[c.Code] = c
	m.created = append(m.created, c)
	return nil
}

func (m *mockCouponRepo) ListByBranch(_ context.Context, branchID int64) ([]Coupon, error) {
	var out []Coupon
	for _, c := range m.coupons {
		if c.BranchID == branchID || c.BranchID == 0 {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCouponRepo) ListCodes(_ context.Context) ([]string, error) {
	var out []string
	for code := range m.coupons {
		out = append(out, code)
	}
	return out, nil
}

func (m *mockCouponRepo) HasRedeemed(_ context.Context, couponID, userID int64) (bool, error) {
	return m.redeemed[[2]int64{couponID, userID}], nil
}

func (m *mockCouponRepo) Redeem(_ context.Context, couponID, userID, _ int64) error {
	m.redeemed[[2]int64{couponID, userID}] = true
	return nil
}

func TestRepoValidator_Verify(t *testing.T) {
	fixedNow := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tet := &Coupon{
		ID: 1, Code: "TET2025", DiscountPercent: 15, BranchID: 3, Active: true,
		ValidFrom:  time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 2, 10, 23, 59, 59, 0, time.UTC),
	}
	spring := &Coupon{
		ID: 2, Code: "SPRING10", DiscountPercent: 10, BranchID: 3, Active: true,
		ValidFrom:  fixedNow.Add(-time.Hour),
		ValidUntil: fixedNow.Add(24 * time.Hour),
	}
	global := &Coupon{
		ID: 3, Code: "WELCOME", DiscountPercent: 5, Active: true,
		ValidFrom:  fixedNow.Add(-time.Hour),
		ValidUntil: fixedNow.Add(24 * time.Hour),
	}
	summer := &Coupon{
		ID: 4, Code: "SUMMER", DiscountPercent: 20, BranchID: 3, Active: true,
		ValidFrom:  fixedNow.Add(30 * 24 * time.Hour),
		ValidUntil: fixedNow.Add(60 * 24 * time.Hour),
	}
	retired := &Coupon{
		ID: 5, Code: "OLD", DiscountPercent: 50, BranchID: 3,
		ValidFrom:  fixedNow.Add(-time.Hour),
		ValidUntil: fixedNow.Add(time.Hour),
	}

	tests := []struct {
		name       string
		code       string
		branchID   int64
		userID     int64
		redeemed   bool
		wantCode   string
		wantReason Reason
	}{
		{name: "valid branch coupon", code: "SPRING10", branchID: 3, wantCode: "SPRING10"},
		{name: "code normalized", code: "  spring10 ", branchID: 3, wantCode: "SPRING10"},
		{name: "global coupon at any branch", code: "welcome", branchID: 8, wantCode: "WELCOME"},
		{name: "unknown code", code: "BOGUS", branchID: 3, wantReason: ReasonNotFound},
		{name: "blank code", code: "  ", branchID: 3, wantReason: ReasonNotFound},
		{name: "inactive coupon", code: "OLD", branchID: 3, wantReason: ReasonNotFound},
		{name: "other branch", code: "SPRING10", branchID: 4, wantReason: ReasonWrongBranch},
		{name: "expired tet coupon", code: "TET2025", branchID: 3, wantReason: ReasonExpired},
		{name: "not yet active", code: "summer", branchID: 3, wantReason: ReasonNotYetActive},
		{name: "already redeemed", code: "SPRING10", branchID: 3, userID: 7, redeemed: true, wantReason: ReasonAlreadyRedeemed},
		{name: "not redeemed by this user", code: "SPRING10", branchID: 3, userID: 8, wantCode: "SPRING10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(tet, spring, global, summer, retired)
			if tt.redeemed {
				repo.redeemed[[2]int64{spring.ID, tt.userID}] = true
			}
			v := NewRepoValidator(repo)
			v.now = func() time.Time { return fixedNow }

			c, err := v.Verify(context.Background(), tt.code, tt.branchID, tt.userID)
			if tt.wantReason != "" {
				var rej *RejectedError
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, tt.wantReason, rej.Reason)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, c.Code)
		})
	}
}

func TestRepoValidator_ExpiredMatchesSentinel(t *testing.T) {
	repo := newMockRepo(&Coupon{
		ID: 1, Code: "TET2025", DiscountPercent: 15, BranchID: 3, Active: true,
		ValidFrom:  time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
	})
	v := NewRepoValidator(repo)
	v.now = func() time.Time { return time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC) }

	_, err := v.Verify(context.Background(), "TET2025", 3, 0)
	require.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRepoValidator_WindowBoundsInclusive(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := newMockRepo(&Coupon{ID: 1, Code: "JAN", BranchID: 1, Active: true, ValidFrom: from, ValidUntil: until})
	v := NewRepoValidator(repo)

	for _, at := range []time.Time{from, until} {
		v.now = func() time.Time { return at }
		_, err := v.Verify(context.Background(), "JAN", 1, 0)
		require.NoError(t, err, at)
	}
}

func TestRepoValidator_InfrastructureError(t *testing.T) {
	repo := newMockRepo()
	repo.findErr = errors.New("connection reset")
	v := NewRepoValidator(repo)

	_, err := v.Verify(context.Background(), "ANY", 1, 0)
	require.Error(t, err)
	var rej *RejectedError
	assert.False(t, errors.As(err, &rej))
}

func TestRepoValidator_CodeIssuedElsewhere(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := newMockRepo()
	v := NewRepoValidator(repo)
	v.now = func() time.Time { return now }

	// Another process issues a coupon after the validator was built.
	importer := NewService(repo, NewCodeIndex(nil, 0.001))
	_, err := importer.Import(context.Background(), 3, CreateInput{
		Code:            "FLASH20",
		DiscountPercent: 20,
		ValidFrom:       now.Add(-time.Hour),
		ValidUntil:      now.Add(time.Hour),
	})
	require.NoError(t, err)

	c, err := v.Verify(context.Background(), "flash20", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, c.DiscountPercent)
	assert.Equal(t, 1, repo.lookups)
}

func TestCodeIndex_Add(t *testing.T) {
	idx := NewCodeIndex(nil, 0.0001)
	assert.False(t, idx.MayContain("FRESH"))
	idx.Add(" fresh ")
	assert.True(t, idx.MayContain("FRESH"))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	owner := &session.Session{UserID: 1, Role: session.RoleSeller, SellerMode: session.ModeOwner, BranchID: 3}
	staff := &session.Session{UserID: 2, Role: session.RoleSeller, SellerMode: session.ModeStaff, BranchID: 3}

	valid := CreateInput{
		Code:            " tet2025 ",
		DiscountPercent: 15,
		ValidFrom:       now,
		ValidUntil:      now.Add(40 * 24 * time.Hour),
	}

	t.Run("owner creates branch coupon", func(t *testing.T) {
		repo := newMockRepo()
		idx := NewCodeIndex(nil, 0.001)
		svc := NewService(repo, idx)
		svc.now = func() time.Time { return now }

		c, err := svc.Create(ctx, owner, valid)
		require.NoError(t, err)
		assert.Equal(t, "TET2025", c.Code)
		assert.Equal(t, int64(3), c.BranchID)
		assert.True(t, c.Active)
		assert.Equal(t, now, c.CreatedAt)
		assert.True(t, idx.MayContain("TET2025"))
	})

	t.Run("global flag clears branch", func(t *testing.T) {
		in := valid
		in.Global = true
		c, err := NewService(newMockRepo(), nil).Create(ctx, owner, in)
		require.NoError(t, err)
		assert.True(t, c.Global())
	})

	t.Run("staff forbidden", func(t *testing.T) {
		_, err := NewService(newMockRepo(), nil).Create(ctx, staff, valid)
		require.ErrorIs(t, err, session.ErrForbidden)
	})

	t.Run("duplicate code", func(t *testing.T) {
		repo := newMockRepo(&Coupon{Code: "TET2025"})
		_, err := NewService(repo, nil).Create(ctx, owner, valid)
		require.ErrorIs(t, err, ErrDuplicateCode)
	})

	invalid := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"percent above 100", func(in *CreateInput) { in.DiscountPercent = 101 }},
		{"negative percent", func(in *CreateInput) { in.DiscountPercent = -1 }},
		{"window reversed", func(in *CreateInput) { in.ValidUntil = in.ValidFrom.Add(-time.Hour) }},
		{"missing code", func(in *CreateInput) { in.Code = " " }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := NewService(newMockRepo(), nil).Create(ctx, owner, in)
			require.ErrorIs(t, err, ErrInvalidCoupon)
		})
	}
}

func TestService_List(t *testing.T) {
	repo := newMockRepo(
		&Coupon{Code: "A", BranchID: 3},
		&Coupon{Code: "B", BranchID: 4},
		&Coupon{Code: "G"},
	)
	seller := &session.Session{UserID: 2, Role: session.RoleSeller, SellerMode: session.ModeStaff, BranchID: 3}

	list, err := NewService(repo, nil).List(context.Background(), seller)
	require.NoError(t, err)
	codes := make([]string, 0, len(list))
	for _, c := range list {
		codes = append(codes, c.Code)
	}
	assert.ElementsMatch(t, []string{"A", "G"}, codes)

	_, err = NewService(repo, nil).List(context.Background(), &session.Session{UserID: 9, Role: session.RoleCustomer})
	require.ErrorIs(t, err, session.ErrForbidden)
}

func TestService_Import(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockRepo()
	svc := NewService(repo, nil)

	c, err := svc.Import(context.Background(), 7, CreateInput{
		Code:            "bulk1",
		DiscountPercent: 5,
		ValidFrom:       now,
		ValidUntil:      now.Add(time.Hour),
		Global:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.BranchID)
	assert.Equal(t, "BULK1", c.Code)

	_, err = svc.Import(context.Background(), 0, CreateInput{Code: "X", DiscountPercent: 5})
	require.ErrorIs(t, err, ErrInvalidCoupon)
}
