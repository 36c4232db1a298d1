// Package memblobclient provides an in-memory blob.Client for tests.
package memblobclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.stacforge.org/infra/go/blob"
	"go.stacforge.org/infra/go/sferr"
)

// MemoryClient implements blob.Client against a map. All methods are safe for
// concurrent use. Error fields, when set, are returned by the corresponding
// method to simulate gateway failures.
type MemoryClient struct {
	mtx      sync.RWMutex
	account  string
	bucket   string
	readOnly bool
	blobs    map[string][]byte

	UploadErr   error
	ListErr     error
	DownloadErr error

	// SAS returns the credential string minted by GenerateContainerSAS.
	SAS string
}

// New returns an empty MemoryClient for the given account and container.
func New(account, container string) *MemoryClient {
	return &MemoryClient{
		account: account,
		bucket:  container,
		blobs:   map[string][]byte{},
		SAS:     "sv=2024&sig=fake",
	}
}

// NewReadOnly returns a read-only MemoryClient sharing no state with others.
func NewReadOnly(account, container string) *MemoryClient {
	c := New(account, container)
	c.readOnly = true
	return c
}

// Seed stores a blob without the read-only check, for test setup.
func (m *MemoryClient) Seed(name string, data []byte) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.blobs[name] = data
}

// URL implements blob.Client.
func (m *MemoryClient) URL() string {
	return fmt.Sprintf("https://%s.blob.%s/%s", m.account, blob.DefaultStorageSuffix, m.bucket)
}

// Upload implements blob.Client.
func (m *MemoryClient) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	if m.readOnly {
		return "", blob.ErrReadOnly
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[name] = cp
	return m.URL() + "/" + name, nil
}

// List implements blob.Client.
func (m *MemoryClient) List(ctx context.Context, prefix, pattern string) ([]string, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	urls := []string{}
	for _, name := range names {
		if prefix != "" && len(name) >= len(prefix) && name[:len(prefix)] != prefix {
			continue
		}
		if prefix != "" && len(name) < len(prefix) {
			continue
		}
		ok, err := blob.MatchName(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			urls = append(urls, m.URL()+"/"+name)
		}
	}
	return urls, nil
}

// Download implements blob.Client.
func (m *MemoryClient) Download(ctx context.Context, name string) ([]byte, error) {
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, sferr.Fmt("blob %s not found", name)
	}
	return data, nil
}

// EnsureContainer implements blob.Client.
func (m *MemoryClient) EnsureContainer(ctx context.Context) error {
	if m.readOnly {
		return blob.ErrReadOnly
	}
	return nil
}

// GenerateContainerSAS implements blob.Client.
func (m *MemoryClient) GenerateContainerSAS(ctx context.Context, expiry time.Time, perms blob.Permissions) (string, error) {
	return m.SAS, nil
}

// Contents returns a copy of the stored blob, or nil.
func (m *MemoryClient) Contents(name string) []byte {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.blobs[name]
}

// Assert that MemoryClient implements blob.Client.
var _ blob.Client = (*MemoryClient)(nil)
