// Package keystore keeps the cloud signing keys of a host in a bbolt
// database. A cloud is authenticated with a single key pair shared by all of
// its peers, so keys are stored by name and can be exported to other hosts.
package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/peercloud/peercloud"
	"github.com/peercloud/peercloud/bn256"
	bolt "go.etcd.io/bbolt"
)

// Scheme names a signature scheme.
type Scheme string

// Supported schemes.
const (
	RSA     Scheme = "rsa"
	Ed25519 Scheme = "ed25519"
	BN256   Scheme = "bn256"
)

var (
	// ErrNotFound is returned when no key is stored under a name.
	ErrNotFound = errors.New("keystore: key not found")
	// ErrExists is returned when storing a key under a name already taken.
	ErrExists = errors.New("keystore: key already exists")
	// ErrUnknownScheme is returned for keys of an unsupported scheme.
	ErrUnknownScheme = errors.New("keystore: unknown scheme")
)

const (
	bKeys     = "keys"
	openTO    = 2 * time.Second
	entryPerm = 0o600
)

type entry struct {
	Scheme  Scheme    `json:"scheme"`
	Secret  []byte    `json:"secret"`
	Created time.Time `json:"created"`
}

// Store is a bbolt backed key store.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("keystore: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, entryPerm, &bolt.Options{Timeout: openTO})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bKeys))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Generate creates a key pair of the given scheme and stores it.
func (s *Store) Generate(name string, scheme Scheme, random io.Reader) (peercloud.SecretKey, error) {
	if random == nil {
		random = rand.Reader
	}
	var sk peercloud.SecretKey
	var err error
	switch scheme {
	case RSA:
		sk, err = peercloud.GenerateRSAKey(random)
	case Ed25519:
		sk, err = peercloud.GenerateEd25519Key(random)
	case BN256:
		sk, err = bn256.NewKeyPair(random)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Put(name, sk); err != nil {
		return nil, err
	}
	return sk, nil
}

// Put stores the secret key under name. It fails with ErrExists if the name
// is taken.
func (s *Store) Put(name string, sk peercloud.SecretKey) error {
	scheme, secret, err := Marshal(sk)
	if err != nil {
		return err
	}
	return s.Import(name, scheme, secret)
}

// Import stores a secret key given in its exported form.
func (s *Store) Import(name string, scheme Scheme, secret []byte) error {
	if name == "" {
		return errors.New("keystore: empty key name")
	}
	if _, err := Unmarshal(scheme, secret); err != nil {
		return err
	}
	val, err := json.Marshal(&entry{Scheme: scheme, Secret: secret, Created: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bKeys))
		if b.Get([]byte(name)) != nil {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return b.Put([]byte(name), val)
	})
}

// Export returns the scheme and the serialized secret key stored under name.
func (s *Store) Export(name string) (Scheme, []byte, error) {
	e, err := s.get(name)
	if err != nil {
		return "", nil, err
	}
	return e.Scheme, e.Secret, nil
}

// Load returns the secret key stored under name.
func (s *Store) Load(name string) (peercloud.SecretKey, error) {
	e, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return Unmarshal(e.Scheme, e.Secret)
}

// Delete removes the key stored under name.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bKeys))
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

// Names lists the stored keys in lexical order.
func (s *Store) Names() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bKeys)).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	sort.Strings(out)
	return out, err
}

func (s *Store) get(name string) (*entry, error) {
	var e *entry
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket([]byte(bKeys)).Get([]byte(name))
		if val == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		e = new(entry)
		return json.Unmarshal(val, e)
	})
	return e, err
}

// Marshal serializes a secret key: PKCS#1 PEM for RSA, the seed for Ed25519
// and the secret scalar for BN256.
func Marshal(sk peercloud.SecretKey) (Scheme, []byte, error) {
	switch k := sk.(type) {
	case *peercloud.RSASecretKey:
		return RSA, k.MarshalPEM(), nil
	case *peercloud.Ed25519SecretKey:
		return Ed25519, k.Seed(), nil
	case *bn256.SecretKey:
		buff, err := k.MarshalBinary()
		return BN256, buff, err
	}
	return "", nil, fmt.Errorf("%w: %T", ErrUnknownScheme, sk)
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(scheme Scheme, secret []byte) (peercloud.SecretKey, error) {
	switch scheme {
	case RSA:
		return peercloud.ParseRSASecretKeyPEM(secret)
	case Ed25519:
		return peercloud.NewEd25519SecretKey(secret)
	case BN256:
		sk := new(bn256.SecretKey)
		if err := sk.UnmarshalBinary(secret); err != nil {
			return nil, err
		}
		return sk, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}
