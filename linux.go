package nightpack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"git.sr.ht/~nightingale/nightpack/internal/util"
	"git.sr.ht/~nightingale/nightpack/log"
)

// Soft dependencies of the Linux install.
const (
	IconCacheTool       = "gtk-update-icon-cache"
	DesktopDatabaseTool = "update-desktop-database"
)

// LinuxOptions tune InstallLinux.
type LinuxOptions struct {
	// SkipBuild installs the existing binary instead of compiling.
	SkipBuild bool
	// FetchYTDLP downloads the latest yt-dlp release into the bin directory
	// before the interpreter line is fixed.
	FetchYTDLP bool
	// Fetcher overrides the default GitHub fetcher.
	Fetcher *YTDLPFetcher
}

// LinuxLayout lists the install locations under a home directory.
type LinuxLayout struct {
	Bin          string
	Applications string
	Hicolor      string
	Icons        string
}

// LinuxLayout returns the per-user install locations for the project.
func (p *Project) LinuxLayout() LinuxLayout {
	var (
		share   = filepath.Join(p.Home, ".local", "share")
		hicolor = filepath.Join(share, "icons", "hicolor")
	)
	return LinuxLayout{
		Bin:          filepath.Join(p.Home, ".local", "bin"),
		Applications: filepath.Join(share, "applications"),
		Hicolor:      hicolor,
		Icons:        filepath.Join(hicolor, "512x512", "apps"),
	}
}

// InstallLinux builds the app and installs it for the current user: binary,
// desktop entry and icon. Missing icons and cache tools only warn.
func InstallLinux(ctx context.Context, p *Project, opts LinuxOptions) (*Report, error) {
	report := &Report{}
	if err := p.Identity.Validate(); err != nil {
		return report, fmt.Errorf("identity: %w", err)
	}
	bin, err := binary(ctx, p, opts.SkipBuild)
	if err != nil {
		return report, fmt.Errorf("building: %w", err)
	}
	layout := p.LinuxLayout()
	for _, dir := range []string{layout.Bin, layout.Applications, layout.Icons} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, fmt.Errorf("preparing directory: %w", err)
		}
	}
	installed := filepath.Join(layout.Bin, p.Identity.Executable)
	log.G(ctx).Infof("installing %s", installed)
	if err := util.CopyFile(bin, installed); err != nil {
		return report, fmt.Errorf("copying binary: %w", err)
	}
	if err := os.Chmod(installed, 0755); err != nil {
		return report, fmt.Errorf("marking binary executable: %w", err)
	}
	report.add(Linux, installed)

	entry, err := DesktopEntry(p.Identity)
	if err != nil {
		return report, fmt.Errorf("generating desktop entry: %w", err)
	}
	desktop := filepath.Join(layout.Applications, p.Identity.Executable+".desktop")
	if err := util.WriteFile(desktop, entry, 0644); err != nil {
		return report, fmt.Errorf("writing desktop entry: %w", err)
	}
	report.add(Linux, desktop)
	refresh(ctx, p, report, DesktopDatabaseTool, false, layout.Applications)

	icon := p.AssetPath(p.Identity.Executable + ".png")
	if util.IsFile(icon) {
		dst := filepath.Join(layout.Icons, p.Identity.Executable+".png")
		if err := util.CopyFile(icon, dst); err != nil {
			return report, fmt.Errorf("copying icon: %w", err)
		}
		report.add(Linux, dst)
		refresh(ctx, p, report, IconCacheTool, true, "-f", "-t", layout.Hicolor)
	} else {
		report.warn(ctx, "icon not found: %s", icon)
	}

	if opts.FetchYTDLP {
		fetcher := opts.Fetcher
		if fetcher == nil {
			fetcher = NewYTDLPFetcher(ctx, GitHubToken())
		}
		path := filepath.Join(layout.Bin, YTDLP)
		tag, err := fetcher.Fetch(ctx, path)
		if err != nil {
			return report, fmt.Errorf("fetching %s: %w", YTDLP, err)
		}
		log.G(ctx).Infof("installed %s %s", YTDLP, tag)
		report.add(Linux, path)
	}
	python, err := FixShebang(ctx, p.runner(), filepath.Join(layout.Bin, YTDLP))
	switch {
	case err != nil:
		report.warn(ctx, "fixing %s interpreter: %v", YTDLP, err)
	case python == FallbackPython:
		report.warn(ctx, "%s not found on PATH, %s runs with %q", Python, YTDLP, FallbackPython)
	}
	return report, nil
}

// refresh runs an optional cache tool. Failure to find or run it never fails
// the install; warn controls whether a missing tool is reported.
func refresh(ctx context.Context, p *Project, report *Report, tool string, warn bool, args ...string) {
	path, err := p.runner().LookPath(tool)
	if err != nil {
		if warn {
			report.warn(ctx, "%s not found, skipping cache refresh", tool)
		} else {
			log.G(ctx).Debugf("%s not found, skipping", tool)
		}
		return
	}
	out, err := p.runner().Run(ctx, "", path, args...)
	if err != nil {
		report.warn(ctx, "%s: %v", tool, err)
		return
	}
	if len(bytes.TrimSpace(out)) > 0 {
		log.G(ctx).Debugf("%s output:\n%s", tool, out)
	}
}

const desktopEntryTpl = `[Desktop Entry]
Type=Application
Name={{ .Name }}
Comment={{ .Comment }}
Exec={{ .Executable }}
Icon={{ .Executable }}
Terminal=false
Categories={{ list .Categories }}
Keywords={{ list .Keywords }}
`

var desktopEntry = template.Must(template.New("desktop").Funcs(template.FuncMap{
	"list": func(items []string) string {
		if len(items) == 0 {
			return ""
		}
		return strings.Join(items, ";") + ";"
	},
}).Parse(desktopEntryTpl))

// DesktopEntry renders the freedesktop launcher entry for id.
func DesktopEntry(id Identity) ([]byte, error) {
	var b bytes.Buffer
	if err := desktopEntry.Execute(&b, id); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
