// Package formutil reads the multipart forms posted by the voice endpoints.
//
// Both /register and /login send text fields plus audio files. Parse caps the
// request body before anything is buffered; Recordings and Recording pull the
// uploaded files out in a stable order and derive each file's audio format
// from its filename or Content-Type. Client filenames are only used for that
// derivation and never reach the filesystem.
//
// Example usage:
//
//	if err := formutil.Parse(w, r, h.maxUpload); err != nil {
//		if errors.Is(err, formutil.ErrTooLarge) {
//			jsonutil.TooLarge(w, "Upload too large")
//			return
//		}
//		jsonutil.BadRequest(w, "Invalid form data")
//		return
//	}
//	recs, err := formutil.Recordings(r, "recordings", "recording")
package formutil

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/pipeline"
)

// DefaultMaxMemory is how much of a multipart body is held in memory before
// file parts spill to disk.
const DefaultMaxMemory = 8 << 20

var (
	// ErrTooLarge means the body exceeded the configured limit.
	ErrTooLarge = errors.New("request body too large")
	// ErrNotMultipart means the request was not multipart/form-data.
	ErrNotMultipart = errors.New("expected multipart/form-data")
	// ErrNoFile means none of the expected file fields were present.
	ErrNoFile = errors.New("no recording uploaded")
)

// Parse limits the body to maxBytes and parses it as multipart/form-data.
// A non-positive maxBytes disables the limit.
func Parse(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(DefaultMaxMemory); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return ErrTooLarge
		case errors.Is(err, http.ErrNotMultipart):
			return ErrNotMultipart
		}
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return nil
}

// Value returns the trimmed form value for key.
func Value(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// Recordings collects every file uploaded under the given field names, in
// field order. After the named fields, indexed fields "recording_0",
// "recording_1", ... are appended in numeric order. Returns ErrNoFile when
// there are none.
func Recordings(r *http.Request, fields ...string) ([]pipeline.Recording, error) {
	if r.MultipartForm == nil {
		return nil, ErrNoFile
	}

	var headers []*multipart.FileHeader
	for _, f := range fields {
		headers = append(headers, r.MultipartForm.File[f]...)
	}

	type indexed struct {
		n  int
		fh []*multipart.FileHeader
	}
	var extra []indexed
	for name, fhs := range r.MultipartForm.File {
		rest, ok := strings.CutPrefix(name, "recording_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		extra = append(extra, indexed{n: n, fh: fhs})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].n < extra[j].n })
	for _, e := range extra {
		headers = append(headers, e.fh...)
	}

	if len(headers) == 0 {
		return nil, ErrNoFile
	}

	recs := make([]pipeline.Recording, 0, len(headers))
	for _, fh := range headers {
		rec, err := read(fh)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Recording returns the single file uploaded under field.
func Recording(r *http.Request, field string) (pipeline.Recording, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return pipeline.Recording{}, ErrNoFile
	}
	return read(r.MultipartForm.File[field][0])
}

func read(fh *multipart.FileHeader) (pipeline.Recording, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.Recording{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Recording{}, fmt.Errorf("read upload: %w", err)
	}
	return pipeline.Recording{
		Data:   data,
		Format: normalize.Format(fh.Filename, fh.Header.Get("Content-Type")),
	}, nil
}
