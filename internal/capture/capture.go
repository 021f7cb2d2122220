// Package capture abstracts the image source the scan workflow reads from.
// The session machine only needs three things from a camera: acquire it,
// take a still, release it.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Device is an acquired-on-demand image capture source.
type Device interface {
	// Open acquires the capture device. It must be called before Snapshot.
	Open() error

	// Snapshot takes one still synchronously and returns the encoded image
	// bytes with their content type.
	Snapshot() ([]byte, string, error)

	// Close releases the device. Closing an unopened device is harmless.
	Close() error
}

// DirDevice treats a spool directory as a camera: Snapshot picks up the
// newest image (or PDF) file dropped into the directory. This is how
// headless setups integrate real webcams — a capture tool writes frames to
// disk and we read them.
type DirDevice struct {
	dir  string
	open bool
}

// NewDirDevice creates a device backed by the given spool directory,
// creating it if needed.
func NewDirDevice(dir string) (*DirDevice, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &DirDevice{dir: dir}, nil
}

// Open acquires the device by verifying the spool directory is readable.
func (d *DirDevice) Open() error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return fmt.Errorf("acquiring spool directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("spool path %s is not a directory", d.dir)
	}
	d.open = true
	return nil
}

// Snapshot returns the newest supported file in the spool directory.
func (d *DirDevice) Snapshot() ([]byte, string, error) {
	if !d.open {
		return nil, "", fmt.Errorf("capture device is not open")
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, "", fmt.Errorf("reading spool directory: %w", err)
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if contentTypeFor(entry.Name()) == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = entry.Name()
			newestMod = mod
		}
	}
	if newest == "" {
		return nil, "", fmt.Errorf("no captured frame in %s", d.dir)
	}

	data, err := os.ReadFile(filepath.Join(d.dir, newest))
	if err != nil {
		return nil, "", fmt.Errorf("reading frame: %w", err)
	}
	return data, contentTypeFor(newest), nil
}

// Close releases the device.
func (d *DirDevice) Close() error {
	d.open = false
	return nil
}

// contentTypeFor maps a frame filename to its content type, or "" for
// unsupported files.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}
