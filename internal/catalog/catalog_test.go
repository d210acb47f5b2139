package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infobroker/pkg/sentinel"
)

func mustDefault(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	return c
}

func TestLookup(t *testing.T) {
	c := mustDefault(t)

	svc, err := c.Lookup(KeyPhone)
	require.NoError(t, err)
	assert.Equal(t, "Phone Lookup", svc.Name)

	_, err = c.Lookup("dns")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestMatchExclusivity(t *testing.T) {
	c := mustDefault(t)

	tests := []struct {
		name string
		text string
		key  string
	}{
		{"phone", "9876543210", KeyPhone},
		{"national id", "123456789012", KeyNationalID},
		{"bank code", "SBIN0000001", KeyBankCode},
		{"vehicle", "KA04EQ4521", KeyVehicle},
		{"ip", "149.154.167.91", KeyIP},
		{"pincode", "110006", KeyPincode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := c.MatchAll(tt.text)
			require.Len(t, matches, 1, "reference inputs must match exactly one service")
			assert.Equal(t, tt.key, matches[0].Key)
		})
	}
}

func TestMatchRejectsPartial(t *testing.T) {
	c := mustDefault(t)

	// An 11-digit string must not match the 10-digit phone pattern.
	_, ok := c.Match("98765432101")
	assert.False(t, ok)

	_, ok = c.Match("12345")
	assert.False(t, ok)

	_, ok = c.Match("hello there")
	assert.False(t, ok)
}

func TestMatchCaseInsensitiveAndTrimmed(t *testing.T) {
	c := mustDefault(t)

	svc, ok := c.Match("  ka04eq4521 ")
	require.True(t, ok)
	assert.Equal(t, KeyVehicle, svc.Key)

	svc, ok = c.Match("sbin0000001")
	require.True(t, ok)
	assert.Equal(t, KeyBankCode, svc.Key)
}

func TestNormalize(t *testing.T) {
	c := mustDefault(t)

	vehicle, err := c.Lookup(KeyVehicle)
	require.NoError(t, err)
	assert.Equal(t, "KA04EQ4521", vehicle.Normalize(" ka04eq4521 "))

	ip, err := c.Lookup(KeyIP)
	require.NoError(t, err)
	assert.Equal(t, "149.154.167.91", ip.Normalize(" 149.154.167.91\n"))
}

func TestQueryURL(t *testing.T) {
	c := mustDefault(t)

	ifsc, err := c.Lookup(KeyBankCode)
	require.NoError(t, err)
	assert.Equal(t, "https://ifsc.razorpay.com/SBIN0000001", ifsc.QueryURL("SBIN0000001"))
}

func TestNewRejectsDuplicateKeys(t *testing.T) {
	_, err := New([]Service{
		{Key: "a", Pattern: `\d+`},
		{Key: "a", Pattern: `\d+`},
	})
	assert.Error(t, err)
}

func TestFirstRegisteredWins(t *testing.T) {
	c, err := New([]Service{
		{Key: "first", Pattern: `\d{4}`},
		{Key: "second", Pattern: `\d{4}`},
	})
	require.NoError(t, err)

	svc, ok := c.Match("1234")
	require.True(t, ok)
	assert.Equal(t, "first", svc.Key)
	assert.Len(t, c.MatchAll("1234"), 2)
}
