package seed

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/digigoods/db"
	"github.com/xenking/digigoods/internal/auth"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/storage/memory"
)

func TestDecode_Embedded(t *testing.T) {
	c, err := Decode(bytes.NewReader(db.SeedCatalog))
	require.NoError(t, err)

	assert.NotEmpty(t, c.Users)
	assert.NotEmpty(t, c.Products)
	assert.NotEmpty(t, c.Discounts)
}

func TestDecode_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write(db.SeedCatalog)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	plain, err := Decode(bytes.NewReader(db.SeedCatalog))
	require.NoError(t, err)
	zipped, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, plain, zipped)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{
			name: "unknown field",
			json: `{"products": [], "coupons": []}`,
			want: "unknown field",
		},
		{
			name: "bad date",
			json: `{"discounts": [{"code": "X", "percentage": "5", "type": "GENERAL", "validFrom": "01/01/2025", "validUntil": "2025-12-31"}]}`,
			want: "parse date",
		},
		{
			name: "unknown kind",
			json: `{"discounts": [{"code": "X", "percentage": "5", "type": "BOGO", "validFrom": "2025-01-01", "validUntil": "2025-12-31"}]}`,
			want: "oneof",
		},
		{
			name: "window reversed",
			json: `{"discounts": [{"code": "X", "percentage": "5", "type": "GENERAL", "validFrom": "2025-12-31", "validUntil": "2025-01-01"}]}`,
			want: "ends before it starts",
		},
		{
			name: "dangling product",
			json: `{"discounts": [{"code": "X", "percentage": "5", "type": "PRODUCT_SPECIFIC", "validFrom": "2025-01-01", "validUntil": "2025-12-31", "applicableProducts": ["ghost"]}]}`,
			want: "unknown product ghost",
		},
		{
			name: "percentage above 100",
			json: `{"discounts": [{"code": "X", "percentage": "101", "type": "GENERAL", "validFrom": "2025-01-01", "validUntil": "2025-12-31"}]}`,
			want: "out of range",
		},
		{
			name: "negative stock",
			json: `{"products": [{"id": "p1", "name": "P", "price": "1", "stock": -1}]}`,
			want: "gte",
		},
		{
			name: "user without password",
			json: `{"users": [{"username": "alice"}]}`,
			want: "required_without",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	c, err := Decode(bytes.NewReader(db.SeedCatalog))
	require.NoError(t, err)

	store := memory.NewStore()
	require.NoError(t, Apply(ctx, store, c, Options{BcryptCost: bcrypt.MinCost}))
	// Re-applying upserts in place.
	require.NoError(t, Apply(ctx, store, c, Options{BcryptCost: bcrypt.MinCost}))

	u, err := store.Users().GetByUsername(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.True(t, auth.ComparePassword(u.PasswordHash, "password123"))

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(c.Products))

	ds, err := store.Discounts().FindByCodes(ctx, []string{"EBOOK20"})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, discount.KindProductSpecific, ds[0].Kind)
	assert.Equal(t, []string{"ebook-go"}, ds[0].ApplicableProducts)
	assert.Equal(t, "2025-01-01", ds[0].StartDate.Format("2006-01-02"))
}

func TestApply_KeepsPrehashedPasswords(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)

	store := memory.NewStore()
	require.NoError(t, Apply(ctx, store, &Catalog{
		Users: []User{{Username: "carol", PasswordHash: hash}},
	}, Options{}))

	u, err := store.Users().GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, hash, u.PasswordHash)
}
