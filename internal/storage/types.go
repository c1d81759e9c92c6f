package storage

import "time"

// DocRecord is a consolidated snapshot of a doc at a timestamp.
type DocRecord struct {
	DocID     string    `json:"doc_id"`
	Bin       []byte    `json:"bin"`
	Timestamp time.Time `json:"timestamp"`
}

// DocUpdate is one incremental delta in a doc's update log.
type DocUpdate struct {
	DocID     string    `json:"doc_id"`
	Timestamp time.Time `json:"timestamp"`
	Bin       []byte    `json:"bin"`
}

// DocClock is a doc's logical version: the maximum timestamp across
// its snapshot and updates.
type DocClock struct {
	DocID     string    `json:"doc_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SetBlobInput carries a blob write. The key is supplied by the
// caller (a content hash upstream); the store does not re-hash.
type SetBlobInput struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
	Mime string `json:"mime"`
}

// Blob is a stored binary payload.
type Blob struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	Mime      string    `json:"mime"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ListedBlob is a blob listing entry without the payload.
type ListedBlob struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	Mime      string    `json:"mime"`
	CreatedAt time.Time `json:"created_at"`
}

// Timestamps persist as INTEGER microseconds since the Unix epoch.
// The Go surface exposes time.Time truncated to microseconds, UTC.

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
