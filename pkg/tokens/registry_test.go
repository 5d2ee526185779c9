package tokens

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `[
	{"address": "0x86fa049857e0209aa7d9e616f7eb3b3b78ecfdb0", "symbol": "EOS", "decimal": 18, "type": "default"},
	{"address": "", "symbol": "NOADDR", "decimal": 18, "type": "default"},
	{"address": "0x0000000000000000000000000000000000000001", "symbol": "DUP", "decimal": 8, "type": "default"},
	{"address": "0x0000000000000000000000000000000000000002", "symbol": "DUP", "decimal": 8, "type": "default"},
	{"address": "not-an-address", "symbol": "BAD", "decimal": 0, "type": "default"}
]`

func TestRegistryLookup(t *testing.T) {
	r, err := Parse([]byte(testRegistry), "test")
	require.NoError(t, err)

	tests := []struct {
		name    string
		symbol  string
		want    common.Address
		wantErr error
	}{
		{"known", "EOS", common.HexToAddress("0x86fa049857e0209aa7d9e616f7eb3b3b78ecfdb0"), nil},
		{"case insensitive", "eos", common.HexToAddress("0x86fa049857e0209aa7d9e616f7eb3b3b78ecfdb0"), nil},
		{"first match wins", "DUP", common.HexToAddress("0x0000000000000000000000000000000000000001"), nil},
		{"unknown", "XYZ", common.Address{}, ErrUnknownSymbol},
		{"empty address", "NOADDR", common.Address{}, ErrMissingAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := r.Lookup(tt.symbol)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token.ContractAddress())
		})
	}

	_, err = r.Lookup("BAD")
	assert.Error(t, err)
}

func TestRegistryLoad(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tokens.json")
		require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0600))

		r, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, path, r.Source())
		assert.Len(t, r.List(), 5)
	})

	t.Run("missing explicit path", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "tokens.json"))
		assert.Error(t, err)
	})

	t.Run("builtin fallback", func(t *testing.T) {
		r, err := Load("no-such-registry.json")
		require.NoError(t, err)
		assert.Equal(t, "builtin", r.Source())

		eos, err := r.Lookup("EOS")
		require.NoError(t, err)
		assert.Equal(t, 18, eos.Decimals)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Parse([]byte(`{"symbol": "EOS"}`), "bad")
		assert.Error(t, err)
	})
}

func TestRegistryListSorted(t *testing.T) {
	r, err := Parse([]byte(testRegistry), "test")
	require.NoError(t, err)

	list := r.List()
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Symbol, list[i].Symbol)
	}
}
