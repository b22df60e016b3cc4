package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/types"
)

const secretsTable = "_secrets"

// Store persists encrypted secrets through the project-scoped storage
// manager, one "_secrets" table per project alongside its workflow tables.
type Store struct {
	manager *storage.Manager
	key     [32]byte
}

// NewStore derives an AES-256 key from keyMaterial (MECHAWAY_SECRET_KEY)
// via SHA-256, matching the password-to-key derivation used elsewhere in
// the stack for simple at-rest encryption.
func NewStore(manager *storage.Manager, keyMaterial string) *Store {
	return &Store{manager: manager, key: sha256.Sum256([]byte(keyMaterial))}
}

// Put encrypts value and stores it under name in project's secret table,
// replacing any existing value with the same name.
func (s *Store) Put(ctx context.Context, projectSlug, name, value string) error {
	ciphertext, err := s.encrypt(value)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encrypt secret", err)
	}

	ps, err := s.manager.ForProject(projectSlug)
	if err != nil {
		return err
	}

	existing, err := s.find(ctx, ps, name)
	if err == nil && existing != nil {
		// Overwrite by rewriting the whole row set minus the stale entry;
		// the secrets table is small and rarely written.
		if err := s.deleteAndRewrite(ctx, ps, name); err != nil {
			return err
		}
	}

	row := map[string]types.Value{
		"name":       name,
		"ciphertext": base64.StdEncoding.EncodeToString(ciphertext),
	}
	return ps.WriteRows(ctx, secretsTable, []map[string]types.Value{row})
}

// Resolve decrypts and returns the named secret for projectID. Implements
// pkg/binding.SecretResolver.
func (s *Store) Resolve(ctx context.Context, projectSlug, name string) (string, error) {
	ps, err := s.manager.ForProject(projectSlug)
	if err != nil {
		return "", err
	}

	row, err := s.find(ctx, ps, name)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", errs.Newf(errs.MissingSecret, "secret %q not found", name)
	}

	encoded, _ := row["ciphertext"].(string)
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "corrupt secret ciphertext", err)
	}

	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		return "", errs.Wrap(errs.MissingSecret, "failed to decrypt secret", err)
	}
	return plaintext, nil
}

func (s *Store) find(ctx context.Context, ps *storage.ProjectStore, name string) (map[string]types.Value, error) {
	rows, err := ps.ReadRows(ctx, secretsTable, 10000, 0, "")
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row["name"] == name {
			return row, nil
		}
	}
	return nil, nil
}

func (s *Store) deleteAndRewrite(ctx context.Context, ps *storage.ProjectStore, name string) error {
	rows, err := ps.ReadRows(ctx, secretsTable, 10000, 0, "")
	if err != nil {
		return err
	}
	kept := make([]map[string]types.Value, 0, len(rows))
	for _, row := range rows {
		if row["name"] != name {
			kept = append(kept, row)
		}
	}
	return ps.ReplaceTable(ctx, secretsTable, kept)
}

func (s *Store) encrypt(plaintext string) ([]byte, error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (s *Store) decrypt(ciphertext []byte) (string, error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
