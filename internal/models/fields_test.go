package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFieldSet(t *testing.T) {
	t.Run("valid names", func(t *testing.T) {
		set, err := ParseFieldSet([]string{"phone", "given_name"})
		require.NoError(t, err)
		require.True(t, set.Has(FieldPhone))
		require.True(t, set.Has(FieldGivenName))
		require.False(t, set.Has(FieldLocation))
	})

	t.Run("unknown name rejected", func(t *testing.T) {
		_, err := ParseFieldSet([]string{"phone", "salary"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "salary")
	})

	t.Run("empty input", func(t *testing.T) {
		set, err := ParseFieldSet(nil)
		require.NoError(t, err)
		require.Empty(t, set)
	})
}

func TestFieldSet_Slice(t *testing.T) {
	set := NewFieldSet(FieldPhone, FieldAvatarURL, FieldGivenName)
	require.Equal(t, []string{"avatar_url", "given_name", "phone"}, set.Slice())
}

func TestFieldSet_CloneIsolation(t *testing.T) {
	set := NewFieldSet(FieldPhone)
	clone := set.Clone()
	clone.Add(FieldLocation)
	clone.Remove(FieldPhone)

	require.True(t, set.Has(FieldPhone))
	require.False(t, set.Has(FieldLocation))
}

func TestTenant_InDomains(t *testing.T) {
	tenant := &Tenant{PrimaryDomain: "Acme.com", AllowedDomains: []string{"acme.io"}}

	require.True(t, tenant.InDomains("jane@acme.com"))
	require.True(t, tenant.InDomains("jane@ACME.IO"))
	require.False(t, tenant.InDomains("jane@other.com"))
	require.False(t, tenant.InDomains("not-an-email"))
}
