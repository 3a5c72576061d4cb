package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Encrypt encrypts plaintext with an RSA public key. A single OAEP block
// can carry at most modulusBytes-oaepOverhead bytes, so longer messages
// are split into chunks, each encrypted independently. The result is one
// base64 block, or several joined with the chunk separator.
//
// All chunks are buffered before returning so a mid-sequence failure
// never yields a partial ciphertext.
func (p *CryptoProvider) Encrypt(plaintext string, publicKeyPEM []byte) (string, error) {
	pub, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("%w: import public key: %v", ErrEncryption, err)
	}

	maxChunkSize := pub.Size() - oaepOverhead
	if maxChunkSize <= 0 {
		return "", fmt.Errorf("%w: key too small for OAEP", ErrEncryption)
	}

	data := []byte(plaintext)
	if len(data) <= maxChunkSize {
		block, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, data, nil)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncryption, err)
		}
		return base64.StdEncoding.EncodeToString(block), nil
	}

	chunks := make([]string, 0, (len(data)+maxChunkSize-1)/maxChunkSize)
	for i := 0; i < len(data); i += maxChunkSize {
		end := i + maxChunkSize
		if end > len(data) {
			end = len(data)
		}
		block, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, data[i:end], nil)
		if err != nil {
			return "", fmt.Errorf("%w: chunk %d: %v", ErrEncryption, len(chunks), err)
		}
		chunks = append(chunks, base64.StdEncoding.EncodeToString(block))
	}

	return strings.Join(chunks, chunkSeparator), nil
}

// Decrypt decrypts a message produced by Encrypt. Chunking is detected by
// the presence of the separator; segments are decrypted in order and
// their plaintext concatenated. Any segment failure aborts the whole
// operation with no partial plaintext.
func (p *CryptoProvider) Decrypt(encrypted string, privateKeyPEM []byte) (string, error) {
	if encrypted == "" {
		return "", fmt.Errorf("%w: empty ciphertext", ErrDecryption)
	}

	priv, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("%w: import private key: %v", ErrDecryption, err)
	}

	segments := strings.Split(encrypted, chunkSeparator)
	var plaintext []byte
	for i, segment := range segments {
		block, err := base64.StdEncoding.DecodeString(segment)
		if err != nil {
			return "", fmt.Errorf("%w: chunk %d: invalid base64: %v", ErrDecryption, i, err)
		}
		chunk, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, block, nil)
		if err != nil {
			return "", fmt.Errorf("%w: chunk %d: %v", ErrDecryption, i, err)
		}
		plaintext = append(plaintext, chunk...)
	}

	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryption)
	}

	return string(plaintext), nil
}

// MaxChunkSize returns the plaintext byte capacity of a single encrypted
// block at the provider's key size.
func (p *CryptoProvider) MaxChunkSize() int {
	return p.keyBits/8 - oaepOverhead
}
