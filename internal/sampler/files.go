package sampler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

// IsVideo reports whether name has a known video extension.
func IsVideo(name string) bool {
	_, ok := videoTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// TypeByName returns the MIME type for name's extension, or "" if unknown.
// Video extensions are resolved without consulting the system tables.
func TypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// BytesFile is an in-memory RawFile.
type BytesFile struct {
	info FileInfo
	data []byte
}

// NewBytesFile wraps data. info.Size is overwritten with len(data).
func NewBytesFile(info FileInfo, data []byte) *BytesFile {
	info.Size = int64(len(data))
	return &BytesFile{info: info, data: data}
}

func (f *BytesFile) Info() FileInfo { return f.info }

func (f *BytesFile) ReadRange(ctx context.Context, off, n int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if off < 0 || off > int64(len(f.data)) {
		return nil, fmt.Errorf("offset %d out of range", off)
	}
	end := min(off+n, int64(len(f.data)))
	out := make([]byte, end-off)
	copy(out, f.data[off:end])
	return out, nil
}

// OSFile is a RawFile backed by a path on the local filesystem.
type OSFile struct {
	path string
	info FileInfo
}

// OpenFile stats path and returns a RawFile for it. The MIME type comes from
// the extension, falling back to content sniffing.
func OpenFile(path string) (*OSFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mimeType := TypeByName(path)
	if mimeType == "" {
		mimeType = sniff(path)
	}

	return &OSFile{
		path: path,
		info: FileInfo{
			Name:         filepath.Base(path),
			Size:         st.Size(),
			MIMEType:     mimeType,
			LastModified: st.ModTime(),
		},
	}, nil
}

func sniff(path string) string {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return "application/octet-stream"
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)
	return http.DetectContentType(buf[:n])
}

func (f *OSFile) Info() FileInfo { return f.info }

func (f *OSFile) ReadRange(ctx context.Context, off, n int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()

	buf := make([]byte, n)
	read, err := fh.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

// MultipartFile adapts an uploaded multipart file.
type MultipartFile struct {
	header *multipart.FileHeader
	info   FileInfo
}

// NewMultipartFile wraps an upload. Browsers do not send a modification time
// with the file part, so the caller passes it separately (zero if unknown).
func NewMultipartFile(header *multipart.FileHeader, lastModified time.Time) *MultipartFile {
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = TypeByName(header.Filename)
	}
	return &MultipartFile{
		header: header,
		info: FileInfo{
			Name:         header.Filename,
			Size:         header.Size,
			MIMEType:     mimeType,
			LastModified: lastModified,
		},
	}
}

func (f *MultipartFile) Info() FileInfo { return f.info }

func (f *MultipartFile) ReadRange(ctx context.Context, off, n int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := f.header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = fh.Close() }()

	buf := make([]byte, n)
	read, err := fh.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
