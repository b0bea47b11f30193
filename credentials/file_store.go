package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-shopify-provisioner/core"
)

const DefaultTokenStorePath = ".token/token_store.json"

const encryptedTokenPrefix = "enc:v1:"

// snapshot is the on-disk document. It is always written and read whole.
type snapshot struct {
	Shops map[string]core.CredentialRecord `json:"shops"`
}

type FileStoreOption func(*FileStore)

func WithLogger(logger core.Logger) FileStoreOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSecretProvider encrypts access tokens before they reach the disk.
func WithSecretProvider(secrets core.SecretProvider) FileStoreOption {
	return func(s *FileStore) {
		s.secrets = secrets
	}
}

// FileStore keeps every tenant credential in one JSON file. Writes replace
// the file through a temp file and rename, so readers see either the old or
// the new snapshot. Reads reload the file whenever it was replaced, which
// covers writes from other processes sharing the path.
//
// Entries that cannot be opened (a key that is not a shop domain, a token
// sealed under an unknown key) stay in the file untouched; they are hidden
// from Get and List but survive every rewrite.
type FileStore struct {
	path    string
	logger  core.Logger
	secrets core.SecretProvider

	writeMu sync.Mutex
	viewMu  sync.RWMutex
	state   fileState
	loaded  bool
}

type fileState struct {
	view   map[core.TenantID]core.CredentialRecord
	opaque map[string]core.CredentialRecord
	info   os.FileInfo
}

func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultTokenStorePath
	}
	store := &FileStore{
		path:   path,
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *FileStore) Get(ctx context.Context, tenant core.TenantID) (core.CredentialRecord, bool, error) {
	if s == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("credentials: file store is not configured")
	}
	record, ok := s.current(ctx).view[tenant]
	return record, ok, nil
}

func (s *FileStore) Put(ctx context.Context, tenant core.TenantID, record core.CredentialRecord) error {
	if s == nil {
		return fmt.Errorf("credentials: file store is not configured")
	}
	if strings.TrimSpace(tenant.String()) == "" {
		return fmt.Errorf("credentials: tenant is required")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := s.readSnapshot(ctx)
	if err != nil {
		return core.NewStorageError(err, "credentials: read token store")
	}
	next.view[tenant] = record
	delete(next.opaque, tenant.String())
	if err := s.commit(ctx, next); err != nil {
		return core.NewStorageError(err, "credentials: write token store")
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, tenant core.TenantID) error {
	if s == nil {
		return fmt.Errorf("credentials: file store is not configured")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := s.readSnapshot(ctx)
	if err != nil {
		return core.NewStorageError(err, "credentials: read token store")
	}
	_, known := next.view[tenant]
	_, sealed := next.opaque[tenant.String()]
	if !known && !sealed {
		return nil
	}
	delete(next.view, tenant)
	delete(next.opaque, tenant.String())
	if err := s.commit(ctx, next); err != nil {
		return core.NewStorageError(err, "credentials: write token store")
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]core.TenantID, error) {
	if s == nil {
		return nil, fmt.Errorf("credentials: file store is not configured")
	}
	return sortedTenants(s.current(ctx).view), nil
}

// current returns the cached state while the file on disk is the one it was
// read from, and reloads otherwise. A file that exists but cannot be read
// keeps the last good state.
func (s *FileStore) current(ctx context.Context) fileState {
	info, statErr := os.Stat(s.path)
	s.viewMu.RLock()
	cached, loaded := s.state, s.loaded
	s.viewMu.RUnlock()
	if loaded && unchanged(cached.info, info, statErr) {
		return cached
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next, err := s.readSnapshot(ctx)
	if err != nil {
		if loaded {
			return cached
		}
		return fileState{view: map[core.TenantID]core.CredentialRecord{}}
	}
	s.setState(next)
	return next
}

func unchanged(cached os.FileInfo, info os.FileInfo, statErr error) bool {
	if statErr != nil {
		return cached == nil && os.IsNotExist(statErr)
	}
	return cached != nil &&
		os.SameFile(cached, info) &&
		cached.Size() == info.Size() &&
		cached.ModTime().Equal(info.ModTime())
}

func (s *FileStore) setState(state fileState) {
	s.viewMu.Lock()
	s.state = state
	s.loaded = true
	s.viewMu.Unlock()
}

func (s *FileStore) commit(ctx context.Context, next fileState) error {
	info, err := s.writeSnapshot(ctx, next)
	if err != nil {
		return err
	}
	next.info = info
	s.setState(next)
	return nil
}

// readSnapshot treats a missing or malformed file as empty, so the next Put
// heals it. It fails only when the file exists but cannot be read; writing
// over it then would drop credentials.
func (s *FileStore) readSnapshot(ctx context.Context) (fileState, error) {
	out := fileState{
		view:   map[core.TenantID]core.CredentialRecord{},
		opaque: map[string]core.CredentialRecord{},
	}
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		s.logger.WithContext(ctx).Warn("token store unreadable", "path", s.path, "error", err.Error())
		return out, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", s.path)
	}
	var raw []byte
	if err == nil {
		raw, err = io.ReadAll(file)
	}
	if err != nil {
		s.logger.WithContext(ctx).Warn("token store unreadable", "path", s.path, "error", err.Error())
		return out, err
	}
	out.info = info

	var doc snapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.WithContext(ctx).Warn("token store malformed, treating as empty", "path", s.path, "error", err.Error())
		return out, nil
	}
	for shop, record := range doc.Shops {
		tenant, err := core.NormalizeTenantID(shop)
		if err != nil {
			s.logger.WithContext(ctx).Warn("token store entry has an invalid shop, keeping it sealed", "shop", shop)
			out.opaque[shop] = record
			continue
		}
		token, err := s.openToken(ctx, record.AccessToken)
		if err != nil {
			s.logger.WithContext(ctx).Warn("token store entry unreadable, keeping it sealed", "shop", shop, "error", err.Error())
			out.opaque[shop] = record
			continue
		}
		record.AccessToken = token
		out.view[tenant] = record
	}
	return out, nil
}

func (s *FileStore) writeSnapshot(ctx context.Context, state fileState) (os.FileInfo, error) {
	doc := snapshot{Shops: make(map[string]core.CredentialRecord, len(state.view)+len(state.opaque))}
	for shop, record := range state.opaque {
		doc.Shops[shop] = record
	}
	for tenant, record := range state.view {
		sealed, err := s.sealToken(ctx, record.AccessToken)
		if err != nil {
			return nil, err
		}
		record.AccessToken = sealed
		doc.Shops[tenant.String()] = record
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	// Rename keeps the inode, so this describes the file readers will stat.
	info, err := os.Stat(tmpName)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("stat temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return nil, fmt.Errorf("replace token store: %w", err)
	}
	return info, nil
}

func (s *FileStore) sealToken(ctx context.Context, token string) (string, error) {
	if s.secrets == nil {
		return token, nil
	}
	ciphertext, err := s.secrets.Encrypt(ctx, []byte(token))
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	return encryptedTokenPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *FileStore) openToken(ctx context.Context, stored string) (string, error) {
	if !strings.HasPrefix(stored, encryptedTokenPrefix) {
		return stored, nil
	}
	if s.secrets == nil {
		return "", fmt.Errorf("encrypted token without secret provider")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, encryptedTokenPrefix))
	if err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	plaintext, err := s.secrets.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypt access token: %w", err)
	}
	return string(plaintext), nil
}

func sortedTenants(view map[core.TenantID]core.CredentialRecord) []core.TenantID {
	out := make([]core.TenantID, 0, len(view))
	for tenant := range view {
		out = append(out, tenant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
