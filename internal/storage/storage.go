// Package storage keeps call artefacts (transcriptions) in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"call-insights/internal/apperr"
	"call-insights/pkg/logger"
)

// MessageUnavailable is the user-facing text for any object store failure.
const MessageUnavailable = "Сервис хранилища недоступен."

var (
	ErrNotFound            = errors.New("storage: object not found")
	ErrRangeNotSatisfiable = errors.New("storage: range not satisfiable")
	ErrInvalidRange        = errors.New("storage: invalid range")
)

// ObjectStore is the blob sink used by the calls module.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	// Download opens key. A nil rng reads the whole object.
	Download(ctx context.Context, key string, rng *ByteRange) (*Download, error)
	Delete(ctx context.Context, key string) error
	Stats(ctx context.Context) (Stats, error)
}

// Download is an open object read. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	// Size is the full object size; Offset and Length describe the returned window.
	Size    int64
	Offset  int64
	Length  int64
	Partial bool
}

// ContentRange formats the Content-Range header for a partial read.
func (d *Download) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", d.Offset, d.Offset+d.Length-1, d.Size)
}

// Space reports capacity in bytes. Total and Free are -1 when no quota is configured.
type Space struct {
	Free  int64 `json:"free"`
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
}

type Stats struct {
	Space Space `json:"space"`
}

func statsFor(used, quota int64) Stats {
	if quota <= 0 {
		return Stats{Space: Space{Free: -1, Total: -1, Used: used}}
	}
	free := quota - used
	if free < 0 {
		free = 0
	}
	return Stats{Space: Space{Free: free, Total: quota, Used: used}}
}

// Key joins a directory and a file path into an object key.
func Key(dir, file string) string {
	file = strings.TrimLeft(path.Clean("/"+file), "/")
	if file == "" || file == "." {
		return ""
	}
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return file
	}
	return dir + "/" + file
}

// ContentTypeFor guesses a MIME type from the key's extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ByteRange is an HTTP byte range. End is inclusive. A nil Start with an End set
// means "the last End bytes".
type ByteRange struct {
	Start *int64
	End   *int64
}

// ParseRange parses a single-range "bytes=start-end" header value. An empty header
// yields a nil range.
func ParseRange(header string) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	unit, ranges, ok := strings.Cut(header, "=")
	if !ok || strings.TrimSpace(unit) != "bytes" || strings.Contains(ranges, ",") {
		return nil, ErrInvalidRange
	}
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(ranges), "-")
	if !ok || (startRaw == "" && endRaw == "") {
		return nil, ErrInvalidRange
	}
	var r ByteRange
	if startRaw != "" {
		n, err := strconv.ParseInt(startRaw, 10, 64)
		if err != nil || n < 0 {
			return nil, ErrInvalidRange
		}
		r.Start = &n
	}
	if endRaw != "" {
		n, err := strconv.ParseInt(endRaw, 10, 64)
		if err != nil || n < 0 {
			return nil, ErrInvalidRange
		}
		r.End = &n
	}
	if r.Start != nil && r.End != nil && *r.End < *r.Start {
		return nil, ErrInvalidRange
	}
	return &r, nil
}

// Resolve clamps the range to an object of size bytes and returns offset and length.
func (r *ByteRange) Resolve(size int64) (offset, length int64, err error) {
	if r == nil || (r.Start == nil && r.End == nil) {
		return 0, size, nil
	}
	if r.Start == nil {
		n := *r.End
		if n == 0 || size == 0 {
			return 0, 0, ErrRangeNotSatisfiable
		}
		if n > size {
			n = size
		}
		return size - n, n, nil
	}
	start := *r.Start
	if start >= size {
		return 0, 0, ErrRangeNotSatisfiable
	}
	end := size - 1
	if r.End != nil && *r.End < end {
		end = *r.End
	}
	return start, end - start + 1, nil
}

// RangeError reports an unusable Range header.
func RangeError(err error) error {
	return apperr.BadRequest("RANGE_NOT_SATISFIABLE", "Запрошенный диапазон недоступен.", err)
}

// fail logs an object store error and converts it into a domain error.
func fail(ctx context.Context, op, key string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(err)
	case errors.Is(err, ErrRangeNotSatisfiable), errors.Is(err, ErrInvalidRange):
		return RangeError(err)
	}
	logger.Op(ctx, op, "object").Error("object store failure", "key", key, "err", err)
	ae := apperr.Unavailable(err)
	ae.Message = MessageUnavailable
	return ae
}
