// Package objectstore provides the blob stores behind core.ObjectStore: a
// NATS JetStream bucket and a local directory.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

var (
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty keys or keys that could escape the store.
	ErrInvalidKey = errors.New("invalid object key")
)

const errFmtBucket = "%s '%s' in bucket '%s': %w"

// NatsObjectStore keeps uploads and processed artifacts in a JetStream
// object store bucket.
type NatsObjectStore struct {
	bucket string
	store  jetstream.ObjectStore
}

// NewNats opens bucket, creating it on first use. Reopening an existing
// bucket keeps its objects.
func NewNats(ctx context.Context, js jetstream.JetStream, bucket string) (*NatsObjectStore, error) {
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "voicefx uploads and processed audio",
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open object store bucket '%s': %w", bucket, err)
	}

	return &NatsObjectStore{bucket: bucket, store: store}, nil
}

// Bucket names the backing JetStream bucket.
func (n *NatsObjectStore) Bucket() string { return n.bucket }

// Download returns the stored bytes for key.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	err := checkKey(key)
	if err != nil {
		return nil, err
	}

	data, err := n.store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf(errFmtBucket, "no object", key, n.bucket, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf(errFmtBucket, "failed to get", key, n.bucket, err)
	}

	return data, nil
}

// Upload stores data under key, replacing any previous object.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	_, err = n.store.PutBytes(ctx, key, data)
	if err != nil {
		return fmt.Errorf(errFmtBucket, "failed to put", key, n.bucket, err)
	}

	return nil
}

// Delete removes key. Missing objects are not an error.
func (n *NatsObjectStore) Delete(ctx context.Context, key string) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	err = n.store.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf(errFmtBucket, "failed to delete", key, n.bucket, err)
	}

	return nil
}
