package kvstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaxtrack/internal/cryptox"
)

// saltKey holds the per-device key derivation salt in the clear.
const saltKey = "_salt"

// EncryptedRepository seals every value before it reaches the underlying
// repository. Keys stay in the clear.
type EncryptedRepository struct {
	base   Repository
	sealer *cryptox.Sealer
}

// NewEncryptedRepository derives the key from passphrase and the device
// salt, creating the salt on first use. passphrase is wiped.
func NewEncryptedRepository(ctx context.Context, base Repository, passphrase []byte) (*EncryptedRepository, error) {
	defer cryptox.Wipe(passphrase)

	salt, err := base.Get(ctx, saltKey)
	if err != nil {
		return nil, err
	}
	if salt == nil {
		if salt, err = cryptox.RandomBytes(cryptox.SaltSize); err != nil {
			return nil, err
		}
		if err := base.Set(ctx, saltKey, salt); err != nil {
			return nil, err
		}
	}

	key := cryptox.DeriveKey(passphrase, salt)
	defer cryptox.Wipe(key)

	s, err := cryptox.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &EncryptedRepository{base: base, sealer: s}, nil
}

func (r *EncryptedRepository) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := r.base.Get(ctx, key)
	if err != nil || sealed == nil {
		return sealed, err
	}
	v, err := r.sealer.Open(sealed, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open kv[%s]: %w", key, err)
	}
	return v, nil
}

func (r *EncryptedRepository) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := r.sealer.Seal(value, []byte(key))
	if err != nil {
		return fmt.Errorf("failed to seal kv[%s]: %w", key, err)
	}
	return r.base.Set(ctx, key, sealed)
}

func (r *EncryptedRepository) Delete(ctx context.Context, key string) error {
	return r.base.Delete(ctx, key)
}

func (r *EncryptedRepository) DeleteMany(ctx context.Context, keys []string) error {
	return r.base.DeleteMany(ctx, keys)
}

// List returns the opened values; the salt is not included.
func (r *EncryptedRepository) List(ctx context.Context) (map[string][]byte, error) {
	all, err := r.base.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(all))
	for k, sealed := range all {
		if k == saltKey {
			continue
		}
		v, err := r.sealer.Open(sealed, []byte(k))
		if err != nil {
			return nil, fmt.Errorf("failed to open kv[%s]: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
