package classify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image"
	"strings"

	// Registered decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"example.com/focusforge/internal/domain"
)

// DefaultImageScore is the verdict confidence returned for any well-formed image.
const DefaultImageScore = 0.9

// FixedImageClassifier accepts any decodable image and reports a fixed productive verdict.
type FixedImageClassifier struct {
	Score float64
}

// NewFixedImageClassifier returns the default image capability.
func NewFixedImageClassifier() *FixedImageClassifier {
	return &FixedImageClassifier{Score: DefaultImageScore}
}

// ClassifyImage implements ImageClassifier.
func (c *FixedImageClassifier) ClassifyImage(ctx context.Context, imageBase64 string) (Verdict, error) {
	if _, _, err := DecodeImage(imageBase64); err != nil {
		return Verdict{}, err
	}
	return Verdict{Label: domain.LabelProductive, Score: c.Score}, nil
}

// DecodeImage strips an optional data URL prefix, decodes the base64 payload and checks the
// bytes are an image in one of the registered formats. It returns the raw bytes and the format.
func DecodeImage(imageBase64 string) ([]byte, string, error) {
	payload := strings.TrimSpace(imageBase64)
	if strings.HasPrefix(payload, "data:") {
		_, rest, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, "", domain.InputError("image data url has no payload")
		}
		payload = rest
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", domain.InputError("image is not valid base64")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", domain.InputError("image payload is not a supported image: %v", err)
	}
	return raw, format, nil
}

// ImageRef is the content reference stored in place of image bytes.
func ImageRef(imageBase64 string) string {
	raw, _, err := DecodeImage(imageBase64)
	if err != nil {
		raw = []byte(imageBase64)
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}
