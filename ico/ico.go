// ico format encoding.
// Modified from https://github.com/wailsapp/wails project.
package ico

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"

	"git.sr.ht/~nightingale/nightpack/internal/iconset"
)

// Sizes embedded by Encode when none are given.
var Sizes = []int{256, 128, 64, 48, 32, 16}

type container struct {
	Header Descriptor
	Data   []byte
}

// Header is the ICONDIR block at the start of an ico file.
type Header struct {
	Reserved   uint16
	ImageType  uint16
	ImageCount uint16
}

// Descriptor is the ICONDIRENTRY for one embedded image.
type Descriptor struct {
	Width    uint8
	Height   uint8
	Colors   uint8
	Reserved uint8
	Planes   uint16
	BPP      uint16
	Size     uint32
	Offset   uint32
}

// Encode writes src as a multi-resolution ico into dst. Each size is stored
// as an embedded PNG.
func Encode(dst io.Writer, src image.Image, sizes ...int) error {
	if len(sizes) == 0 {
		sizes = Sizes
	}
	icons := make([]container, 0, len(sizes))
	for _, size := range sizes {
		if size <= 0 || size > 256 {
			return fmt.Errorf("ico: unsupported size %d", size)
		}
		buffer := bytes.NewBuffer(nil)
		if err := png.Encode(buffer, iconset.Resize(src, size)); err != nil {
			return fmt.Errorf("encoding png data into ico: %w", err)
		}
		// A dimension of 0 means 256.
		imgSize := size
		if imgSize >= 256 {
			imgSize = 0
		}
		data := buffer.Bytes()
		icons = append(icons, container{
			Header: Descriptor{
				Width:  uint8(imgSize),
				Height: uint8(imgSize),
				Planes: 1,
				BPP:    32,
				Size:   uint32(len(data)),
			},
			Data: data,
		})
	}
	if err := binary.Write(dst, binary.LittleEndian, Header{
		ImageType:  1,
		ImageCount: uint16(len(icons)),
	}); err != nil {
		return fmt.Errorf("writing ico header: %w", err)
	}
	offset := uint32(6 + 16*len(icons))
	for _, icon := range icons {
		icon.Header.Offset = offset
		if err := binary.Write(dst, binary.LittleEndian, icon.Header); err != nil {
			return fmt.Errorf("writing icon headers: %w", err)
		}
		offset += icon.Header.Size
	}
	for _, icon := range icons {
		if _, err := dst.Write(icon.Data); err != nil {
			return fmt.Errorf("writing icon data: %w", err)
		}
	}
	return nil
}
