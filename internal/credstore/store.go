package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/specforge/specforge/internal/logging"
)

// Sentinel errors returned by Store operations.
var (
	// ErrNotFound indicates the named credential does not exist in the store.
	ErrNotFound = errors.New("credential not found")

	// ErrWrongPassphrase indicates the store file could not be unlocked,
	// either because the passphrase is wrong or the file was tampered with.
	ErrWrongPassphrase = errors.New("cannot unlock credential store")

	// ErrCorruptStore indicates the store decrypted but its payload is not
	// a valid credential document.
	ErrCorruptStore = errors.New("corrupt credential store")
)

// DefaultFileName is the store file created under the config directory.
const DefaultFileName = "credentials.age"

// envKeyPrefix namespaces exported environment variables so a sourced env
// file cannot collide with unrelated variables on the runner host.
const envKeyPrefix = "SPECFORGE_CRED_"

// defaultWorkFactor is the scrypt work factor (log2 N) used when sealing.
// 18 matches the age CLI default for interactive passphrase use.
const defaultWorkFactor = 18

// storeVersion is the payload schema version written to new stores.
const storeVersion = 1

// Credential is a single named secret held by the store.
type Credential struct {
	// Name identifies the credential. Operations reference it as
	// {{credential:NAME}} in generated artifacts.
	Name string `json:"name"`

	// Value is the secret material. It is never written to logs.
	Value string `json:"value"`

	// UpdatedAt records the last time the credential was set.
	UpdatedAt time.Time `json:"updated_at"`
}

// payload is the JSON document sealed inside the store file.
type payload struct {
	Version     int                   `json:"version"`
	Credentials map[string]Credential `json:"credentials"`
}

// Store reads and writes an age-sealed credential file. A missing file is
// treated as an empty store; the file is created on the first Set.
type Store struct {
	path string

	// workFactor is the scrypt cost used when sealing. Tests lower it to
	// keep round-trips fast.
	workFactor int
}

// New returns a store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path, workFactor: defaultWorkFactor}
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Set adds or replaces the named credential and seals the store back to disk.
func (s *Store) Set(ctx context.Context, passphrase, name, value string) error {
	log := logging.FromContext(ctx)

	p, err := s.load(ctx, passphrase)
	if err != nil {
		return err
	}

	p.Credentials[name] = Credential{
		Name:      name,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.save(p, passphrase); err != nil {
		return err
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "credstore").
		Str("operation", "set").
		Str("name", name).
		Int("credential_count", len(p.Credentials)).
		Msg("Credential stored")

	return nil
}

// Get returns the named credential.
func (s *Store) Get(ctx context.Context, passphrase, name string) (Credential, error) {
	p, err := s.load(ctx, passphrase)
	if err != nil {
		return Credential{}, err
	}

	cred, ok := p.Credentials[name]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return cred, nil
}

// List returns all credentials sorted by name.
func (s *Store) List(ctx context.Context, passphrase string) ([]Credential, error) {
	p, err := s.load(ctx, passphrase)
	if err != nil {
		return nil, err
	}

	creds := make([]Credential, 0, len(p.Credentials))
	for _, cred := range p.Credentials {
		creds = append(creds, cred)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Name < creds[j].Name })

	return creds, nil
}

// Remove deletes the named credential and seals the store back to disk.
func (s *Store) Remove(ctx context.Context, passphrase, name string) error {
	log := logging.FromContext(ctx)

	p, err := s.load(ctx, passphrase)
	if err != nil {
		return err
	}

	if _, ok := p.Credentials[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(p.Credentials, name)

	if err := s.save(p, passphrase); err != nil {
		return err
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "credstore").
		Str("operation", "remove").
		Str("name", name).
		Int("credential_count", len(p.Credentials)).
		Msg("Credential removed")

	return nil
}

// Export writes every credential to w in env-file form, one KEY=value line
// per credential sorted by name. Keys are upper-cased names with characters
// outside [A-Z0-9_] replaced by underscores and prefixed with
// SPECFORGE_CRED_, so a runner can source the file and resolve
// {{credential:NAME}} references against its environment.
func (s *Store) Export(ctx context.Context, passphrase string, w io.Writer) error {
	creds, err := s.List(ctx, passphrase)
	if err != nil {
		return err
	}

	for _, cred := range creds {
		if _, err := fmt.Fprintf(w, "%s=%s\n", EnvKey(cred.Name), cred.Value); err != nil {
			return fmt.Errorf("writing env file: %w", err)
		}
	}

	return nil
}

// EnvKey returns the environment variable name a credential exports as.
func EnvKey(name string) string {
	var b strings.Builder
	b.WriteString(envKeyPrefix)
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// load reads and unseals the store file. A missing file yields an empty
// payload so first use needs no init step.
func (s *Store) load(ctx context.Context, passphrase string) (*payload, error) {
	log := logging.FromContext(ctx)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().
				Ctx(ctx).
				Str("component", "credstore").
				Str("path", s.path).
				Msg("Store file absent, starting empty")
			return &payload{Version: storeVersion, Credentials: map[string]Credential{}}, nil
		}
		return nil, fmt.Errorf("reading credential store: %w", err)
	}

	plaintext, err := unseal(raw, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if p.Credentials == nil {
		p.Credentials = map[string]Credential{}
	}

	return &p, nil
}

// save seals the payload and writes it via a temp file rename so a crash
// mid-write cannot truncate the previous store.
func (s *Store) save(p *payload, passphrase string) error {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding credential store: %w", err)
	}

	sealed, err := seal(plaintext, passphrase, s.workFactor)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating credential store directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("writing credential store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing credential store: %w", err)
	}

	return nil
}

// seal encrypts plaintext to a scrypt recipient derived from passphrase.
func seal(plaintext []byte, passphrase string, workFactor int) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(workFactor)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}

	return ciphertext.Bytes(), nil
}

// unseal decrypts an age ciphertext with an scrypt identity derived from
// passphrase.
func unseal(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted payload: %w", err)
	}

	return plaintext, nil
}
