package nightpack

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"git.sr.ht/~nightingale/nightpack/ico"
	"git.sr.ht/~nightingale/nightpack/internal/command"
	"git.sr.ht/~nightingale/nightpack/internal/iconset"
	"git.sr.ht/~nightingale/nightpack/internal/util"
	"git.sr.ht/~nightingale/nightpack/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LinuxIconSize is the edge length of the Linux launcher icon.
const LinuxIconSize = 512

// IconUsage is printed when the icon generator is invoked without a source.
const IconUsage = "nightpack icon <path-to-source-image>"

// IconOptions tune GenerateIcons.
type IconOptions struct {
	// ICO additionally writes a Windows icon.
	ICO bool
	// Converter packs the iconset. Defaults to iconutil when available,
	// otherwise the built-in encoder.
	Converter Converter
}

// Converter turns an iconset directory into an ICNS file.
type Converter interface {
	Convert(ctx context.Context, iconset, dst string) error
}

// IconUtil converts with Apple's iconutil.
type IconUtil struct {
	Runner command.Runner
	// Path to the iconutil binary.
	Path string
}

// Convert implements Converter.
func (c IconUtil) Convert(ctx context.Context, dir, dst string) error {
	out, err := c.Runner.Run(ctx, "", c.Path, "-c", "icns", "-o", dst, dir)
	if len(bytes.TrimSpace(out)) > 0 {
		log.G(ctx).Debugf("iconutil output:\n%s", out)
	}
	return err
}

// ICNSWriter converts without external tools.
type ICNSWriter struct{}

// Convert implements Converter.
func (ICNSWriter) Convert(_ context.Context, dir, dst string) error {
	var buf bytes.Buffer
	if err := iconset.Pack(&buf, dir); err != nil {
		return err
	}
	return util.WriteFile(dst, buf.Bytes(), 0644)
}

func (p *Project) converter(ctx context.Context) Converter {
	path, err := p.runner().LookPath("iconutil")
	if err != nil {
		log.G(ctx).Debugf("iconutil not found, using built-in icns encoder")
		return ICNSWriter{}
	}
	return IconUtil{Runner: p.runner(), Path: path}
}

// IconResult is the outcome of GenerateIcons.
type IconResult struct {
	Report
	// Iconset lists the intermediate images, removed once converted.
	Iconset []string
}

// GenerateIcons derives the macOS and Linux icons from the image at src.
//
// src is validated before anything is written: an empty path is ErrUsage, a
// missing file ErrNoInput. The intermediate iconset directory is always
// removed after conversion.
func GenerateIcons(ctx context.Context, p *Project, src string, opts IconOptions) (*IconResult, error) {
	result := &IconResult{}
	if src == "" {
		return result, fmt.Errorf("%w: %s", ErrUsage, IconUsage)
	}
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return result, fmt.Errorf("%w: %s", ErrNoInput, src)
	}
	img, err := decodeImage(src)
	if err != nil {
		return result, fmt.Errorf("decoding %s: %w", src, err)
	}
	if b := img.Bounds(); b.Dx() != b.Dy() {
		result.warn(ctx, "%s is %dx%d, not square; icons will be stretched", src, b.Dx(), b.Dy())
	}
	assets := p.AssetPath("")
	if err := os.MkdirAll(assets, 0755); err != nil {
		return result, fmt.Errorf("preparing assets: %w", err)
	}
	converter := opts.Converter
	if converter == nil {
		converter = p.converter(ctx)
	}
	icns := p.AssetPath("icon.icns")
	result.Iconset, err = buildIconset(ctx, p.AssetPath("icon.iconset"), img, icns, converter)
	if err != nil {
		return result, err
	}
	result.add(Assets, icns)

	png := p.AssetPath(p.Identity.Executable + ".png")
	log.G(ctx).Infof("writing %s", png)
	if err := iconset.WritePNG(png, img, LinuxIconSize); err != nil {
		return result, fmt.Errorf("writing linux icon: %w", err)
	}
	result.add(Assets, png)

	if opts.ICO {
		path := p.AssetPath("icon.ico")
		var buf bytes.Buffer
		if err := ico.Encode(&buf, img); err != nil {
			return result, fmt.Errorf("encoding ico: %w", err)
		}
		if err := util.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return result, fmt.Errorf("writing ico: %w", err)
		}
		result.add(Assets, path)
	}
	return result, nil
}

// buildIconset renders img into the working directory dir, converts it to
// dst and removes dir whatever the outcome.
func buildIconset(ctx context.Context, dir string, img image.Image, dst string, converter Converter) ([]string, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, fmt.Errorf("preparing %s: %w", dir, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.G(ctx).Warnf("removing %s: %v", dir, err)
		}
	}()
	log.G(ctx).Infof("rendering %d icon sizes", len(iconset.Entries))
	paths, err := iconset.Write(dir, img)
	if err != nil {
		return paths, fmt.Errorf("rendering iconset: %w", err)
	}
	log.G(ctx).Infof("writing %s", dst)
	if err := converter.Convert(ctx, dir, dst); err != nil {
		return paths, fmt.Errorf("converting iconset: %w", err)
	}
	rel := make([]string, len(paths))
	for ii, path := range paths {
		rel[ii] = filepath.Base(path)
	}
	return rel, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
