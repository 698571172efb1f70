package assemble

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// loaderTagOffset is where the 4 device-code bytes live inside the loader
// binary header. The bytes are stored reversed on disk.
const (
	loaderTagOffset = 21
	loaderTagLength = 4
)

// ReadLoaderTag derives the device-profile tag from the merged loader
// binary: 4 bytes at the fixed header offset, byte-order reversed. The
// resulting short code selects the image-maker's device type. Offset and
// length are a compatibility contract with the vendor tool chain; any
// deviation produces update images the flashing tools reject.
func ReadLoaderTag(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open loader: %w", err)
	}
	defer file.Close()

	raw := make([]byte, loaderTagLength)
	if _, err := io.ReadFull(io.NewSectionReader(file, loaderTagOffset, loaderTagLength), raw); err != nil {
		return "", fmt.Errorf("read loader header at offset %d: %w", loaderTagOffset, err)
	}

	tag := make([]byte, loaderTagLength)
	for i, b := range raw {
		tag[loaderTagLength-1-i] = b
	}

	return string(tag), nil
}
