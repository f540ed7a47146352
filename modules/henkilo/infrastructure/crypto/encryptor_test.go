package crypto_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/henkilo/infrastructure/crypto"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := hex.EncodeToString(make([]byte, 32))
	enc, err := crypto.NewAESEncryptor(key)
	require.NoError(t, err)

	sealed, err := enc.Seal("120345-123A")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "120345")

	plain, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "120345-123A", plain)
}

func TestNewAESEncryptorRejectsBadKeys(t *testing.T) {
	_, err := crypto.NewAESEncryptor("not-hex")
	assert.Error(t, err)

	_, err = crypto.NewAESEncryptor(hex.EncodeToString(make([]byte, 16)))
	assert.Error(t, err)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := hex.EncodeToString(make([]byte, 32))
	enc, err := crypto.NewAESEncryptor(key)
	require.NoError(t, err)

	sealed, err := enc.Seal("120345-123A")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = enc.Open(sealed)
	assert.Error(t, err)
}
