package session

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// videoTypes maps extensions to the media types the analysis service takes.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".3gp":  "video/3gpp",
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks that path is a readable video no larger than maxSize and
// returns its size and media type.
func Validate(path string, maxSize int64) (int64, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, "", ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("cannot read '%s': %v", path, err),
		}
	}
	if !info.Mode().IsRegular() {
		return 0, "", ValidationError{Field: "file", Message: fmt.Sprintf("'%s' is not a regular file", path)}
	}
	if info.Size() == 0 {
		return 0, "", ValidationError{Field: "file", Message: "file is empty"}
	}
	if maxSize > 0 && info.Size() > maxSize {
		return 0, "", ValidationError{
			Field:   "size",
			Message: fmt.Sprintf("file size %d bytes exceeds maximum allowed size of %d bytes", info.Size(), maxSize),
		}
	}

	mimeType, err := DetectType(path)
	if err != nil {
		return 0, "", err
	}
	return info.Size(), mimeType, nil
}

// DetectType resolves a video media type from the extension, falling back
// to content sniffing.
func DetectType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t, nil
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "video/") {
		return strings.SplitN(t, ";", 2)[0], nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", ValidationError{Field: "file", Message: err.Error()}
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	if t := http.DetectContentType(head[:n]); strings.HasPrefix(t, "video/") {
		return t, nil
	}

	return "", ValidationError{
		Field:   "type",
		Message: fmt.Sprintf("'%s' is not a supported video (extension %q)", filepath.Base(path), ext),
	}
}
