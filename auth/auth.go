// Package auth implements the identity of players: offline mode profiles, the encryption handshake
// of online mode and verification of players with the Mojang session server.
package auth

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ErrNotAuthenticated is returned when the session server did not confirm that a player joined.
var ErrNotAuthenticated = errors.New("auth: player has not joined")

// Property is a signed property of a profile, such as the skin of a player.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// Profile is the identity of a player.
type Profile struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties,omitempty"`
}

// OfflineProfile returns the profile of a player on a server in offline mode. Its UUID is derived
// from the username the same way vanilla servers derive it.
func OfflineProfile(username string) Profile {
	return Profile{ID: OfflineUUID(username), Name: username}
}

// OfflineUUID returns the name based (version 3) UUID of "OfflinePlayer:" followed by the username.
func OfflineUUID(username string) uuid.UUID {
	id := uuid.UUID(md5.Sum([]byte("OfflinePlayer:" + username)))
	id[6] = id[6]&0x0f | 0x30
	id[8] = id[8]&0x3f | 0x80
	return id
}

// Authenticator verifies that a player joined the server with the server id hash passed.
type Authenticator interface {
	Authenticate(ctx context.Context, username, serverID, ip string) (Profile, error)
}

// KeyPair is the RSA key used to exchange the shared secret of online mode connections.
type KeyPair struct {
	private *rsa.PrivateKey
	public  []byte
}

// GenerateKeyPair generates the 1024 bit key expected by clients.
func GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	public, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return &KeyPair{private: key, public: public}, nil
}

// Public returns the DER encoded public key sent in the encryption request.
func (k *KeyPair) Public() []byte {
	return k.public
}

// Decrypt decrypts data sealed by a client with the public key.
func (k *KeyPair) Decrypt(data []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, k.private, data)
}

// ServerIDHash returns the hash identifying a login to the session server.
func ServerIDHash(serverID string, secret, publicKey []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(secret)
	h.Write(publicKey)
	return TwosComplementHexdigest(h.Sum(nil))
}

// TwosComplementHexdigest formats a digest as the hexadecimal form of the signed big endian number
// it represents, without leading zeroes.
func TwosComplementHexdigest(digest []byte) string {
	n := new(big.Int).SetBytes(digest)
	if len(digest) > 0 && digest[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(digest)*8)))
	}
	return n.Text(16)
}
