// Package debug writes rendered images to disk for inspection.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
)

// Capture writes images into a directory, one file per call.
type Capture struct {
	outputDir string
	prefix    string
	format    string
}

// NewCapture creates a capture handler. format is "png" or "webp".
func NewCapture(outputDir, prefix, format string) (*Capture, error) {
	format = strings.ToLower(format)
	if format != "png" && format != "webp" {
		return nil, fmt.Errorf("capture format %q: want png or webp", format)
	}
	return &Capture{
		outputDir: outputDir,
		prefix:    prefix,
		format:    format,
	}, nil
}

// Filename returns the path Save would write for name. An empty name is
// replaced by a timestamp.
func (c *Capture) Filename(name string) string {
	if name == "" {
		name = time.Now().Format("2006-01-02_15-04-05")
	}
	filename := fmt.Sprintf("%s_%s.%s", c.prefix, name, c.format)
	if c.outputDir != "" {
		filename = filepath.Join(c.outputDir, filename)
	}
	return filename
}

// Save encodes img and returns the written path.
func (c *Capture) Save(name string, img image.Image) (string, error) {
	if c.outputDir != "" {
		if err := os.MkdirAll(c.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := c.Filename(name)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := c.Encode(file, img); err != nil {
		return "", err
	}
	return filename, nil
}

// Encode writes img to w in the capture's format.
func (c *Capture) Encode(w io.Writer, img image.Image) error {
	switch c.format {
	case "webp":
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("encoding WebP: %w", err)
		}
	default:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encoding PNG: %w", err)
		}
	}
	return nil
}
