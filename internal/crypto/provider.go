package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	// DefaultKeyBits is the RSA modulus size in bits.
	DefaultKeyBits = 2048

	// PBKDF2 parameters. DefaultIterations is a tunable security
	// parameter; raising it requires re-hashing stored records.
	DefaultIterations = 100000
	SaltSize          = 32
	HashSize          = 32

	// oaepOverhead is the fixed per-block overhead of OAEP with SHA-1:
	// 2*hLen + 2. It must be recomputed if the hash changes.
	oaepOverhead = 2*sha1.Size + 2

	// chunkSeparator joins base64 blocks of a chunked message. It is not
	// part of the standard base64 alphabet, so splitting on it is safe.
	chunkSeparator = "|"
)

// Errors
var (
	ErrKeyGeneration = errors.New("key generation failed")
	ErrEncryption    = errors.New("encryption failed")
	ErrDecryption    = errors.New("decryption failed")
)

// CryptoProvider implements Provider using RSA-OAEP for messages and
// PBKDF2-HMAC-SHA256 for password records.
type CryptoProvider struct {
	keyBits    int
	iterations int
}

// NewProvider creates a provider with default parameters.
func NewProvider() *CryptoProvider {
	return &CryptoProvider{
		keyBits:    DefaultKeyBits,
		iterations: DefaultIterations,
	}
}

// NewProviderWithParams creates a provider with explicit key size and KDF
// iteration count. Zero values fall back to the defaults.
func NewProviderWithParams(keyBits, iterations int) *CryptoProvider {
	p := NewProvider()
	if keyBits > 0 {
		p.keyBits = keyBits
	}
	if iterations > 0 {
		p.iterations = iterations
	}
	return p
}

// GenerateKeyPair generates an RSA key pair. The private key is encoded
// as PKCS#1 PEM, the public key as PKIX PEM, so both round-trip through
// the import used by Encrypt and Decrypt.
func (p *CryptoProvider) GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, p.keyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal public key: %v", ErrKeyGeneration, err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return &KeyPair{PublicKey: pubPEM, PrivateKey: privPEM}, nil
}

// parsePublicKey imports a PEM-encoded RSA public key (PKIX or PKCS#1).
func parsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}
		return pub, nil
	}

	return x509.ParsePKCS1PublicKey(block.Bytes)
}

// parsePrivateKey imports a PEM-encoded RSA private key (PKCS#1 or PKCS#8).
func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return priv, nil
}
