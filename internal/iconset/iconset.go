// Package iconset produces macOS .iconset directories and packs them into
// ICNS containers.
package iconset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// Entry is one image in an iconset.
type Entry struct {
	// Name is the file name within the iconset directory.
	Name string
	// Pixels is the edge length of the square image.
	Pixels int
	// OSType identifies the image inside an ICNS container.
	OSType [4]byte
}

// Entries lists the images macOS expects in an iconset, in the order
// iconutil writes them.
var Entries = []Entry{
	{Name: "icon_16x16.png", Pixels: 16, OSType: [4]byte{'i', 'c', 'p', '4'}},
	{Name: "icon_16x16@2x.png", Pixels: 32, OSType: [4]byte{'i', 'c', '1', '1'}},
	{Name: "icon_32x32.png", Pixels: 32, OSType: [4]byte{'i', 'c', 'p', '5'}},
	{Name: "icon_32x32@2x.png", Pixels: 64, OSType: [4]byte{'i', 'c', '1', '2'}},
	{Name: "icon_128x128.png", Pixels: 128, OSType: [4]byte{'i', 'c', '0', '7'}},
	{Name: "icon_128x128@2x.png", Pixels: 256, OSType: [4]byte{'i', 'c', '1', '3'}},
	{Name: "icon_256x256.png", Pixels: 256, OSType: [4]byte{'i', 'c', '0', '8'}},
	{Name: "icon_256x256@2x.png", Pixels: 512, OSType: [4]byte{'i', 'c', '1', '4'}},
	{Name: "icon_512x512.png", Pixels: 512, OSType: [4]byte{'i', 'c', '0', '9'}},
	{Name: "icon_512x512@2x.png", Pixels: 1024, OSType: [4]byte{'i', 'c', '1', '0'}},
}

// Resize scales src into a size by size RGBA image.
func Resize(src image.Image, size int) *image.RGBA {
	rect := image.Rect(0, 0, size, size)
	dst := image.NewRGBA(rect)
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
	return dst
}

// WritePNG resizes src and encodes it as PNG at path.
func WritePNG(path string, src image.Image, size int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	if err := png.Encode(f, Resize(src, size)); err != nil {
		f.Close()
		return fmt.Errorf("encoding %q: %w", path, err)
	}
	return f.Close()
}

// Write renders every entry of src into dir, which must exist.
// Returns the paths written, in Entries order.
func Write(dir string, src image.Image) ([]string, error) {
	paths := make([]string, 0, len(Entries))
	for _, e := range Entries {
		path := filepath.Join(dir, e.Name)
		if err := WritePNG(path, src, e.Pixels); err != nil {
			return paths, fmt.Errorf("%s: %w", e.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

const headerSize = 8

// Pack encodes the iconset directory dir as an ICNS container.
//
// Every entry must be present; a partial iconset is an error rather than a
// silently smaller icon.
func Pack(dst io.Writer, dir string) error {
	type chunk struct {
		osType [4]byte
		data   []byte
	}
	var (
		chunks = make([]chunk, 0, len(Entries))
		total  = uint32(headerSize)
	)
	for _, e := range Entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.Name, err)
		}
		chunks = append(chunks, chunk{osType: e.OSType, data: data})
		total += headerSize + uint32(len(data))
	}
	w := bufio.NewWriter(dst)
	if _, err := w.Write([]byte("icns")); err != nil {
		return fmt.Errorf("writing icns header: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, total); err != nil {
		return fmt.Errorf("writing icns header: %w", err)
	}
	for _, c := range chunks {
		if _, err := w.Write(c.osType[:]); err != nil {
			return fmt.Errorf("writing %s header: %w", string(c.osType[:]), err)
		}
		if err := binary.Write(w, binary.BigEndian, uint32(headerSize+len(c.data))); err != nil {
			return fmt.Errorf("writing %s header: %w", string(c.osType[:]), err)
		}
		if _, err := w.Write(c.data); err != nil {
			return fmt.Errorf("writing %s data: %w", string(c.osType[:]), err)
		}
	}
	return w.Flush()
}
