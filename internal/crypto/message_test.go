package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechat/securechat/internal/crypto"
)

func generateTestKeys(t *testing.T) *crypto.KeyPair {
	t.Helper()

	pair, err := crypto.NewProvider().GenerateKeyPair()
	require.NoError(t, err)
	return pair
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	provider := crypto.NewProvider()
	pair := generateTestKeys(t)

	maxChunk := provider.MaxChunkSize()
	require.Equal(t, 214, maxChunk) // 2048/8 - 42

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"single byte", "a"},
		{"short message", "hello world"},
		{"unicode", "привет мир 🔒"},
		{"one below chunk boundary", strings.Repeat("x", maxChunk-1)},
		{"exactly one chunk", strings.Repeat("x", maxChunk)},
		{"one above chunk boundary", strings.Repeat("x", maxChunk+1)},
		{"two chunks exactly", strings.Repeat("y", 2*maxChunk)},
		{"several chunks", strings.Repeat("z", 5*maxChunk+7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := provider.Encrypt(tt.plaintext, pair.PublicKey)
			require.NoError(t, err)

			wantChunks := (len(tt.plaintext) + maxChunk - 1) / maxChunk
			if wantChunks < 1 {
				wantChunks = 1
			}
			assert.Equal(t, wantChunks, len(strings.Split(encrypted, "|")))

			decrypted, err := provider.Decrypt(encrypted, pair.PrivateKey)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestEncryptShortMessageIsSingleBlock(t *testing.T) {
	provider := crypto.NewProvider()
	pair := generateTestKeys(t)

	encrypted, err := provider.Encrypt("hello world", pair.PublicKey)
	require.NoError(t, err)

	// Well under the chunk limit: one base64 block, no separator.
	assert.NotContains(t, encrypted, "|")

	decrypted, err := provider.Decrypt(encrypted, pair.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "hello world", decrypted)
}

func TestEncryptNonDeterministic(t *testing.T) {
	provider := crypto.NewProvider()
	pair := generateTestKeys(t)

	first, err := provider.Encrypt("same message", pair.PublicKey)
	require.NoError(t, err)
	second, err := provider.Encrypt("same message", pair.PublicKey)
	require.NoError(t, err)

	// OAEP padding is randomized, so ciphertexts differ.
	assert.NotEqual(t, first, second)

	for _, encrypted := range []string{first, second} {
		decrypted, err := provider.Decrypt(encrypted, pair.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, "same message", decrypted)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	provider := crypto.NewProvider()
	pairA := generateTestKeys(t)
	pairB := generateTestKeys(t)

	encrypted, err := provider.Encrypt("for A's eyes only", pairA.PublicKey)
	require.NoError(t, err)

	_, err = provider.Decrypt(encrypted, pairB.PrivateKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestDecryptInvalidInput(t *testing.T) {
	provider := crypto.NewProvider()
	pair := generateTestKeys(t)

	tests := []struct {
		name      string
		encrypted string
	}{
		{"empty string", ""},
		{"not base64", "this is not base64!!!"},
		{"valid base64, garbage ciphertext", "aGVsbG8gd29ybGQ="},
		{"chunked with one bad segment", "aGVsbG8=|%%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Decrypt(tt.encrypted, pair.PrivateKey)
			require.Error(t, err)
			assert.ErrorIs(t, err, crypto.ErrDecryption)
		})
	}
}

func TestDecryptCorruptedChunk(t *testing.T) {
	provider := crypto.NewProvider()
	pair := generateTestKeys(t)

	long := strings.Repeat("m", 3*provider.MaxChunkSize())
	encrypted, err := provider.Encrypt(long, pair.PublicKey)
	require.NoError(t, err)

	chunks := strings.Split(encrypted, "|")
	require.Len(t, chunks, 3)

	// Corrupt the middle chunk; the whole decrypt must abort.
	chunks[1] = strings.Repeat("A", len(chunks[1]))
	_, err = provider.Decrypt(strings.Join(chunks, "|"), pair.PrivateKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestEncryptInvalidPublicKey(t *testing.T) {
	provider := crypto.NewProvider()

	tests := []struct {
		name string
		key  []byte
	}{
		{"empty", nil},
		{"not PEM", []byte("definitely not a key")},
		{"wrong PEM type", []byte("-----BEGIN CERTIFICATE-----\naGVsbG8=\n-----END CERTIFICATE-----\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Encrypt("message", tt.key)
			require.Error(t, err)
			assert.ErrorIs(t, err, crypto.ErrEncryption)
		})
	}
}
