package inference

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
)

const jpegQuality = 85

// EncodeJPEG compresses img for upload.
func EncodeJPEG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL inlines a JPEG frame for APIs that take image URLs.
func DataURL(frame []byte) string {
	const prefix = "data:image/jpeg;base64,"
	return prefix + base64.StdEncoding.EncodeToString(frame)
}
