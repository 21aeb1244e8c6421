package siwe

import (
	"strings"
	"testing"

	"github.com/finsight/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	// Known EIP-55 vector.
	checksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "already_checksummed",
			input: checksummed,
			want:  checksummed,
		},
		{
			name:  "all_lowercase",
			input: strings.ToLower(checksummed),
			want:  checksummed,
		},
		{
			name:  "all_uppercase",
			input: "0x" + strings.ToUpper(checksummed[2:]),
			want:  checksummed,
		},
		{
			name:    "bad_checksum",
			input:   "0x5Aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			wantErr: true,
		},
		{
			name:    "too_short",
			input:   "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",
			wantErr: true,
		},
		{
			name:    "non_hex",
			input:   "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAzz",
			wantErr: true,
		},
		{
			name:    "missing_prefix_is_tolerated",
			input:   strings.ToLower(checksummed[2:]),
			want:    checksummed,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAddressIdempotent(t *testing.T) {
	once, err := NormalizeAddress("0x8ba1f109551bd432803012645ac136ddd64dba72")
	require.NoError(t, err)

	twice, err := NormalizeAddress(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeAddressCaseInsensitive(t *testing.T) {
	lower, err := NormalizeAddress("0x8ba1f109551bd432803012645ac136ddd64dba72")
	require.NoError(t, err)

	upper, err := NormalizeAddress("0x8BA1F109551BD432803012645AC136DDD64DBA72")
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
}
