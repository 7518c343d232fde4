package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Common errors returned by Backend implementations.
var (
	ErrNotFound       = errors.New("object not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrBucketNotFound = errors.New("bucket not found")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectRef is a handle to a stored object. For S3 the path is the object key.
type ObjectRef struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// NewObjectRef builds a ref whose name is the last path element.
func NewObjectRef(p string) ObjectRef {
	return ObjectRef{Path: p, Name: path.Base(p)}
}

func (r ObjectRef) String() string { return r.Path }

// ObjectMeta is the metadata needed to fingerprint an object. Hash is empty
// when the backend has no content digest for the object.
type ObjectMeta struct {
	Hash        string
	Size        int64
	TimeCreated time.Time
}

// Listing is one level of a prefix: the files directly under it and its sub folders.
type Listing struct {
	Files      []ObjectRef
	Subfolders []string
}

// Backend abstracts the subset of object storage operations the audit needs.
type Backend interface {
	List(ctx context.Context, prefix string) (*Listing, error)
	Metadata(ctx context.Context, ref ObjectRef) (ObjectMeta, error)
	AccessURL(ctx context.Context, ref ObjectRef) (string, error)
	Delete(ctx context.Context, ref ObjectRef) error
}

var (
	defaultClient Backend
)

// SetDefaultClient sets the global storage backend used by the application.
func SetDefaultClient(c Backend) {
	defaultClient = c
}

// DefaultClient returns the global storage backend if one has been configured.
func DefaultClient() Backend {
	return defaultClient
}

// FolderPrefix normalizes a root or folder to the "a/b/" form used for listing.
func FolderPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
