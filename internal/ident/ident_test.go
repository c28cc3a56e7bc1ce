package ident

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Engine Oil":         "engine-oil",
		"  Brake -- Pads!! ": "brake-pads",
		"5W-30 Synthetic":    "5w-30-synthetic",
		"Café & Co.":         "caf-co",
		"***":                "",
		"already-a-slug":     "already-a-slug",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestUniqueSlugSequence(t *testing.T) {
	var table []string
	for i := 0; i < 3; i++ {
		table = append(table, UniqueSlug(Slugify("Engine Oil"), table))
	}
	assert.Equal(t, []string{"engine-oil", "engine-oil2", "engine-oil3"}, table)
}

func TestUniqueSlugUsesMaxSuffix(t *testing.T) {
	existing := []string{"engine-oil", "engine-oil7", "engine-oil3", "engine-oil-filter", "engine-oilx2"}
	assert.Equal(t, "engine-oil8", UniqueSlug("engine-oil", existing))

	// the bare slug is free even though suffixed ones exist
	assert.Equal(t, "engine-oil", UniqueSlug("engine-oil", []string{"engine-oil4"}))
}

func TestDealerNumber(t *testing.T) {
	assert.Equal(t, "0042", DealerNumber("DLR0042"))
	assert.Equal(t, "7", DealerNumber("d-7"))
	assert.Equal(t, "ACME", DealerNumber("acme"))
}

func TestNextID(t *testing.T) {
	used := map[string]bool{"ORD4213": true}
	exists := func(id string) (bool, error) { return used[id], nil }

	id, err := NextID(PrefixOrder, "42", []string{"ORD4211", "ORD4212", "ORD42x"}, exists)
	require.NoError(t, err)
	assert.Equal(t, "ORD4214", id)

	id, err = NextID(PrefixProduct, "42", nil, exists)
	require.NoError(t, err)
	assert.Equal(t, "PRO421", id)
}

func TestNextIDExhausted(t *testing.T) {
	calls := 0
	_, err := NextID(PrefixCategory, "1", nil, func(string) (bool, error) {
		calls++
		return true, nil
	})
	assert.ErrorIs(t, err, ErrIDExhausted)
	assert.Equal(t, MaxIDAttempts, calls)

	boom := errors.New("boom")
	_, err = NextID(PrefixCategory, "1", nil, func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
