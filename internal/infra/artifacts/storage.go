package artifacts

import "context"

// StoredObject describes an uploaded artifact.
type StoredObject struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	ETag     string `json:"etag"`
}

// ObjectStorage is the blob store run artifacts are copied to.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
}
