package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcerrors"
	"gocloud.dev/gcp"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/janelia-flyem/stitch/stitch"
)

// SplitURL separates a path into the bucket reference and the key within the
// bucket.  Plain filesystem paths return isBucket false and the path as key.
//
//	gs://<bucket>/<key>
//	s3://<bucket>/<key>
//	vast://<endpoint>/<bucket>/<key>
//	file:///<absolute path>
//	mem://<bucket>/<key>
func SplitURL(path string) (ref, key string, isBucket bool, err error) {
	if !stitch.HasScheme(path) {
		return "", path, false, nil
	}
	u, err := url.Parse(path)
	if err != nil {
		return "", "", false, fmt.Errorf("bad storage URL %q: %v", path, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "gs", "s3", "mem":
		if u.Host == "" {
			return "", "", false, fmt.Errorf("storage URL %q has no bucket", path)
		}
		ref = u.Scheme + "://" + u.Host
		if u.RawQuery != "" {
			ref += "?" + u.RawQuery
		}
	case "file":
		ref = "file:///"
	case "vast":
		// VAST S3-compatible storage.  AWS_REGION must be set but is ignored, and
		// credentials are read from AWS_SHARED_CREDENTIALS_FILE.
		parts := strings.SplitN(key, "/", 2)
		if u.Host == "" || len(parts) != 2 {
			return "", "", false, fmt.Errorf("vast URL must be of form 'vast://<endpoint>/<bucket>/<key>'")
		}
		ref = fmt.Sprintf("s3://%s?endpoint=%s&s3ForcePathStyle=true", parts[0], u.Host)
		key = parts[1]
	default:
		return "", "", false, fmt.Errorf("unsupported storage scheme %q in %q", u.Scheme, path)
	}
	if key == "" {
		return "", "", false, fmt.Errorf("storage URL %q has no object key", path)
	}
	return ref, key, true, nil
}

// OpenBucket returns a blob.Bucket for the given reference.  Google buckets use
// default application credentials.  S3 requires AWS credentials that gocloud
// can find and the AWS_REGION environment variable.
func OpenBucket(ctx context.Context, ref string) (bucket *blob.Bucket, err error) {
	if !strings.HasPrefix(ref, "gs://") {
		bucket, err = blob.OpenBucket(ctx, ref)
		if err != nil {
			stitch.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return bucket, nil
	}

	// See https://cloud.google.com/docs/authentication/production
	// for alternatives to default credentials.
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	client, err := gcp.NewHTTPClient(
		gcp.DefaultTransport(),
		gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	bucket, err = gcsblob.OpenBucket(ctx, client, strings.TrimPrefix(ref, "gs://"), nil)
	if err != nil {
		stitch.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
		return nil, err
	}
	return bucket, nil
}

// BucketStore keeps files as objects in a bucket, keyed by path.
type BucketStore struct {
	bucket *blob.Bucket
	ref    string
}

// NewBucketStore wraps an opened bucket.
func NewBucketStore(bucket *blob.Bucket, ref string) *BucketStore {
	return &BucketStore{bucket: bucket, ref: ref}
}

func (bs *BucketStore) String() string {
	return fmt.Sprintf("bucket @ %s", bs.ref)
}

func notFound(err error, key string) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}

func (bs *BucketStore) ReadFile(ctx context.Context, key string) ([]byte, error) {
	data, err := bs.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, notFound(err, key)
	}
	bytesRead.Add(uint64(len(data)))
	return data, nil
}

// WriteFile uploads the object.  It is visible only once the upload completes.
func (bs *BucketStore) WriteFile(ctx context.Context, key string, data []byte) error {
	if err := bs.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return err
	}
	bytesWritten.Add(uint64(len(data)))
	return nil
}

// Rename copies the object to the new key and then deletes the old key.
func (bs *BucketStore) Rename(ctx context.Context, oldkey, newkey string) error {
	if err := bs.bucket.Copy(ctx, newkey, oldkey, nil); err != nil {
		return notFound(err, oldkey)
	}
	return bs.Remove(ctx, oldkey)
}

func (bs *BucketStore) Remove(ctx context.Context, key string) error {
	if err := bs.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}

func (bs *BucketStore) Exists(ctx context.Context, key string) (bool, error) {
	return bs.bucket.Exists(ctx, key)
}

func (bs *BucketStore) Close() error {
	return bs.bucket.Close()
}

type bucketCache struct {
	sync.Mutex
	stores map[string]*BucketStore
}

func newBucketCache() *bucketCache {
	return &bucketCache{stores: make(map[string]*BucketStore)}
}

func (c *bucketCache) get(ctx context.Context, ref string) (*BucketStore, error) {
	c.Lock()
	defer c.Unlock()
	if bs, found := c.stores[ref]; found {
		return bs, nil
	}
	bucket, err := OpenBucket(ctx, ref)
	if err != nil {
		return nil, err
	}
	bs := NewBucketStore(bucket, ref)
	c.stores[ref] = bs
	stitch.Debugf("opened %s\n", bs)
	return bs, nil
}

func (c *bucketCache) close() error {
	c.Lock()
	defer c.Unlock()
	var firstErr error
	for ref, bs := range c.stores {
		if err := bs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.stores, ref)
	}
	return firstErr
}
