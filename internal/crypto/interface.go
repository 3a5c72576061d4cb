package crypto

// Provider defines the interface for cryptographic operations.
type Provider interface {
	// GenerateKeyPair generates an RSA key pair, PEM-encoded.
	GenerateKeyPair() (*KeyPair, error)

	// Encrypt encrypts a message with a PEM-encoded public key.
	Encrypt(plaintext string, publicKeyPEM []byte) (string, error)

	// Decrypt decrypts a message with a PEM-encoded private key.
	Decrypt(encrypted string, privateKeyPEM []byte) (string, error)

	// HashPassword derives a salted password record.
	HashPassword(password string) (string, error)

	// VerifyPassword checks a password against a stored record.
	VerifyPassword(password, record string) bool

	// RandomToken generates a URL-safe random token.
	RandomToken(length int) (string, error)
}

// KeyPair holds a PEM-encoded RSA key pair. The caller owns both keys;
// the provider retains nothing after generation.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}
