package provider

import (
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// validateImage rejects files a provider server would choke on: missing,
// empty, or larger than the configured megabyte cap. When a pixel dimension
// cap is set, formats the image package recognizes are checked against it;
// unrecognized formats pass through since the server may still accept them.
func validateImage(path string, maxSizeMB float64, maxDimensionPx int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("image not accessible: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("image %s is empty", path)
	}
	if maxSizeMB > 0 {
		sizeMB := float64(info.Size()) / (1024 * 1024)
		if sizeMB > maxSizeMB {
			return fmt.Errorf("image %s is %.1fMB, exceeds %.0fMB limit", path, sizeMB, maxSizeMB)
		}
	}
	if maxDimensionPx <= 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("image not accessible: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Unknown or undecodable format. Leave the final word to the server.
		return nil
	}
	if cfg.Width > maxDimensionPx || cfg.Height > maxDimensionPx {
		return fmt.Errorf("image %s is %dx%d, exceeds %dpx limit", path, cfg.Width, cfg.Height, maxDimensionPx)
	}
	return nil
}

// encodeImage reads the file and returns its base64 form for providers that
// inline image bytes in the request payload.
func encodeImage(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
