// Package identity loads or generates the host's 32-byte node secret,
// mirroring Host::getHostIdentifier's fallback-and-persist behavior.
package identity

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/veriumnet/meshhost/hosterrors"
	"github.com/veriumnet/meshhost/peer"
)

// SecretLen is the fixed length of the persisted identity secret.
const SecretLen = 32

// Store loads or generates the 32-byte secret an Identity is derived
// from. It is injected into Host rather than reached for as a package
// singleton, so multiple hosts in one process never share state through
// a global identity file.
type Store interface {
	Load() ([SecretLen]byte, bool, error)
	Save(secret [SecretLen]byte) error
}

// FileStore persists the secret at <dir>/host.
type FileStore struct {
	Dir string
}

// NewFileStore returns a Store rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (s *FileStore) path() string { return filepath.Join(s.Dir, "host") }

// Load reads the secret file. found is false if it does not exist or
// is the wrong length; the caller should then generate and Save a new
// one.
func (s *FileStore) Load() (secret [SecretLen]byte, found bool, err error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return secret, false, nil
		}
		return secret, false, hosterrors.New(hosterrors.TransientIO, "identity.Load", err)
	}
	if len(data) != SecretLen {
		return secret, false, nil
	}
	copy(secret[:], data)
	return secret, true, nil
}

// Save writes secret to the file, creating the directory if needed.
func (s *FileStore) Save(secret [SecretLen]byte) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return hosterrors.New(hosterrors.TransientIO, "identity.Save", err)
	}
	if err := os.WriteFile(s.path(), secret[:], 0o600); err != nil {
		return hosterrors.New(hosterrors.TransientIO, "identity.Save", err)
	}
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	secret [SecretLen]byte
	set    bool
}

func (s *MemStore) Load() ([SecretLen]byte, bool, error) { return s.secret, s.set, nil }
func (s *MemStore) Save(secret [SecretLen]byte) error {
	s.secret = secret
	s.set = true
	return nil
}

// Identity is the loaded/generated key pair a running Host signs and
// identifies itself with.
type Identity struct {
	secret [SecretLen]byte
	priv   *btcec.PrivateKey
}

// Load fetches the identity from store, generating and persisting a
// fresh one if absent. A zero secret found on disk is fatal
// (InvalidState), matching Host::getHostIdentifier.
func Load(store Store) (*Identity, error) {
	secret, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !found {
		secret, err = generate()
		if err != nil {
			return nil, hosterrors.New(hosterrors.InvalidState, "identity.Load", err)
		}
		if err := store.Save(secret); err != nil {
			return nil, err
		}
	}
	if isZero(secret) {
		return nil, hosterrors.New(hosterrors.InvalidState, "identity.Load", nil)
	}
	priv, _ := btcec.PrivKeyFromBytes(secret[:])
	return &Identity{secret: secret, priv: priv}, nil
}

func generate() ([SecretLen]byte, error) {
	var secret [SecretLen]byte
	// The original seeds a PRNG from wall-clock plus monotonic time;
	// Go has a real CSPRNG available, so there is no reason to prefer
	// a weaker time-seeded one.
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, err
	}
	return secret, nil
}

func isZero(b [SecretLen]byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// NodeID returns the 64-byte uncompressed-minus-prefix public key
// identifying this host.
func (id *Identity) NodeID() peer.ID {
	var out peer.ID
	pub := id.priv.PubKey().SerializeUncompressed() // 0x04 || X || Y, 65 bytes
	copy(out[:], pub[1:])
	return out
}

// PrivateKey returns the identity's private key, for the (external)
// handshake collaborator to sign with.
func (id *Identity) PrivateKey() *btcec.PrivateKey { return id.priv }
