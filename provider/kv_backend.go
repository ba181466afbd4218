package provider

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// KVBackend is the external key-value cache backend: a plain HTTP GET/PUT
// against a user-supplied endpoint (FORK_REDIS_ENDPOINT in spec §6), keys
// hex-encoded into the path. No Redis client library is wired in — none of
// the retrieved example repos' go.mod files pull one in, so this stays an
// HTTP client rather than invent an unseen dependency.
type KVBackend struct {
	endpoint string
	client   *http.Client
}

// NewKVBackend returns a backend talking to endpoint (e.g.
// "http://cache.internal:9000").
func NewKVBackend(endpoint string) *KVBackend {
	return &KVBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *KVBackend) url(key []byte) string {
	return b.endpoint + "/" + hex.EncodeToString(key)
}

func (b *KVBackend) Get(key []byte) ([]byte, bool, error) {
	resp, err := b.client.Get(b.url(key))
	if err != nil {
		return nil, false, errors.Wrap(err, "provider: kv get")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, errors.Errorf("provider: kv get status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, errors.Wrap(err, "provider: kv read body")
	}
	return data, true, nil
}

func (b *KVBackend) Put(key, value []byte) error {
	req, err := http.NewRequest(http.MethodPut, b.url(key), bytes.NewReader(value))
	if err != nil {
		return errors.Wrap(err, "provider: kv build request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "provider: kv put")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return errors.Errorf("provider: kv put status %d", resp.StatusCode)
	}
	return nil
}
