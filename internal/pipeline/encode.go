package pipeline

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bdougie/videolens/internal/models"
)

// Encode reads the video at path into its base64 transport form.
func Encode(path, mimeType string) (models.Payload, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to open video: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to stat video: %w", err)
	}

	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(int(info.Size())))

	encoder := base64.NewEncoder(base64.StdEncoding, &sb)
	n, err := io.Copy(encoder, file)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to read video: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return models.Payload{}, fmt.Errorf("failed to flush encoder: %w", err)
	}

	return models.Payload{
		MIMEType: mimeType,
		Encoded:  sb.String(),
		Size:     n,
	}, nil
}
