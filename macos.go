package nightpack

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"text/template"

	"git.sr.ht/~nightingale/nightpack/internal/util"
	"git.sr.ht/~nightingale/nightpack/log"
	"github.com/jackmordaunt/icns"
	"github.com/kdomanski/iso9660"
)

// MacOSOptions tune BundleMacOS.
type MacOSOptions struct {
	// SkipBuild packages the existing binary instead of compiling.
	SkipBuild bool
	// DMG additionally writes a disk image next to the bundle.
	DMG bool
}

// BundlePath returns where the .app bundle is assembled: next to the release
// binary.
func (p *Project) BundlePath() string {
	return filepath.Join(filepath.Dir(p.BinaryPath()), p.Identity.Name+".app")
}

// BundleMacOS builds the app and assembles a macOS .app bundle.
//
// Any existing bundle is removed first, so repeated runs produce the same
// tree. A missing icon is a warning, not an error.
func BundleMacOS(ctx context.Context, p *Project, opts MacOSOptions) (*Report, error) {
	report := &Report{}
	if err := p.Identity.Validate(); err != nil {
		return report, fmt.Errorf("identity: %w", err)
	}
	bin, err := binary(ctx, p, opts.SkipBuild)
	if err != nil {
		return report, fmt.Errorf("building: %w", err)
	}
	var (
		app       = p.BundlePath()
		contents  = filepath.Join(app, "Contents")
		macos     = filepath.Join(contents, "MacOS")
		resources = filepath.Join(contents, "Resources")
	)
	log.G(ctx).Infof("bundling %s", app)
	if err := os.RemoveAll(app); err != nil {
		return report, fmt.Errorf("removing previous bundle: %w", err)
	}
	for _, dir := range []string{macos, resources} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, fmt.Errorf("preparing directory: %w", err)
		}
	}
	if err := util.CopyFile(bin, filepath.Join(macos, p.Identity.Name)); err != nil {
		return report, fmt.Errorf("copying binary: %w", err)
	}
	plist, err := InfoPlist(p.Identity)
	if err != nil {
		return report, fmt.Errorf("generating Info.plist: %w", err)
	}
	if err := util.WriteFile(filepath.Join(contents, "Info.plist"), plist, 0644); err != nil {
		return report, fmt.Errorf("writing Info.plist: %w", err)
	}
	if err := bundleIcon(ctx, p, report, filepath.Join(resources, "icon.icns")); err != nil {
		return report, err
	}
	report.add(Darwin, app)
	if opts.DMG {
		image := filepath.Join(filepath.Dir(app), p.Identity.Name+".dmg")
		if err := dmg(app, image, p.Identity.Name); err != nil {
			return report, fmt.Errorf("creating disk image: %w", err)
		}
		report.add(Darwin, image)
	}
	return report, nil
}

// bundleIcon places the app icon at dst.
//
// The prebuilt assets/icon.icns is preferred. Without it, the Linux png is
// encoded on the fly; without either the bundle ships without an icon.
func bundleIcon(ctx context.Context, p *Project, report *Report, dst string) error {
	src := p.AssetPath("icon.icns")
	if util.IsFile(src) {
		if err := util.CopyFile(src, dst); err != nil {
			return fmt.Errorf("copying icon: %w", err)
		}
		return nil
	}
	report.warn(ctx, "icon not found: %s", src)
	fallback := p.AssetPath(p.Identity.Executable + ".png")
	if !util.IsFile(fallback) {
		return nil
	}
	log.G(ctx).Infof("encoding icon from %s", fallback)
	if err := encodeICNS(fallback, dst); err != nil {
		report.warn(ctx, "encoding fallback icon: %v", err)
		_ = os.Remove(dst)
	}
	return nil
}

// encodeICNS converts the png at src to icns at dst.
func encodeICNS(src, dst string) error {
	srcf, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer srcf.Close()
	img, err := png.Decode(srcf)
	if err != nil {
		return fmt.Errorf("decoding source png: %w", err)
	}
	buf := bytes.NewBuffer(nil)
	if err := icns.Encode(buf, img); err != nil {
		return fmt.Errorf("encoding icns: %w", err)
	}
	return util.WriteFile(dst, buf.Bytes(), 0644)
}

const infoPlistTpl = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleDevelopmentRegion</key>
	<string>en</string>
	<key>CFBundleDisplayName</key>
	<string>{{ xml .Name }}</string>
	<key>CFBundleExecutable</key>
	<string>{{ xml .Name }}</string>
	<key>CFBundleIconFile</key>
	<string>icon</string>
	<key>CFBundleIdentifier</key>
	<string>{{ xml .BundleID }}</string>
	<key>CFBundleInfoDictionaryVersion</key>
	<string>6.0</string>
	<key>CFBundleName</key>
	<string>{{ xml .Name }}</string>
	<key>CFBundlePackageType</key>
	<string>APPL</string>
	<key>CFBundleShortVersionString</key>
	<string>{{ xml .Version }}</string>
	<key>CFBundleVersion</key>
	<string>{{ xml .BuildVersion }}</string>
	<key>LSMinimumSystemVersion</key>
	<string>{{ xml .MinimumSystemVersion }}</string>
	<key>NSHighResolutionCapable</key>
	<true/>
</dict>
</plist>
`

var infoPlist = template.Must(template.New("Info.plist").Funcs(template.FuncMap{
	"xml": func(s string) (string, error) {
		var b bytes.Buffer
		if err := xml.EscapeText(&b, []byte(s)); err != nil {
			return "", err
		}
		return b.String(), nil
	},
}).Parse(infoPlistTpl))

// InfoPlist renders the bundle manifest for id.
func InfoPlist(id Identity) ([]byte, error) {
	var b bytes.Buffer
	if err := infoPlist.Execute(&b, id); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// dmg writes an ISO9660 disk image containing the bundle at src to dst.
// macOS mounts these like any other .dmg; no UDIF metadata is written.
func dmg(src, dst, volume string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s not a directory", src)
	}
	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("initialising writer: %w", err)
	}
	defer writer.Cleanup()
	parent := filepath.Dir(src)
	if err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening file %s: %w", path, err)
		}
		defer f.Close()
		if err := writer.AddFile(f, filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("adding file %s: %w", path, err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("adding files from %s to image: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := writer.WriteTo(out, volume); err != nil {
		out.Close()
		return fmt.Errorf("writing ISO image: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}
