package nightpack

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"git.sr.ht/~nightingale/nightpack/log"
	"github.com/gobuffalo/envy"
	"github.com/google/go-github/v26/github"
	"golang.org/x/oauth2"
)

// YTDLP is the downloader the app shells out to.
const YTDLP = "yt-dlp"

// checksumAsset lists sha256 sums for every asset of a yt-dlp release.
const checksumAsset = "SHA2-256SUMS"

// GitHubToken returns the token used for GitHub API calls, if any.
func GitHubToken() string {
	return envy.Get("GITHUB_TOKEN", "")
}

// YTDLPFetcher installs yt-dlp from its latest GitHub release.
type YTDLPFetcher struct {
	Client *github.Client
	// HTTP downloads release assets.
	HTTP  *http.Client
	Owner string
	Repo  string
	// GOOS selects the release asset.
	GOOS string
}

// NewYTDLPFetcher returns a fetcher for yt-dlp/yt-dlp. An empty token makes
// unauthenticated requests.
func NewYTDLPFetcher(ctx context.Context, token string) *YTDLPFetcher {
	var tc *http.Client
	if token != "" {
		tc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		))
	}
	return &YTDLPFetcher{
		Client: github.NewClient(tc),
		HTTP:   http.DefaultClient,
		Owner:  "yt-dlp",
		Repo:   "yt-dlp",
		GOOS:   runtime.GOOS,
	}
}

// AssetName returns the release asset to install for goos.
func AssetName(goos string) string {
	if goos == "darwin" {
		return "yt-dlp_macos"
	}
	return YTDLP
}

// Fetch downloads the latest release to dst, verifies its checksum and marks
// it executable. Returns the release tag.
//
// The download is staged next to dst and only renamed into place once
// verified, so a failed fetch leaves any existing install untouched.
func (f *YTDLPFetcher) Fetch(ctx context.Context, dst string) (string, error) {
	release, _, err := f.Client.Repositories.GetLatestRelease(ctx, f.Owner, f.Repo)
	if err != nil {
		return "", fmt.Errorf("latest release: %w", err)
	}
	name := AssetName(f.GOOS)
	var binURL, sumsURL string
	for ii := range release.Assets {
		asset := release.Assets[ii]
		switch asset.GetName() {
		case name:
			binURL = asset.GetBrowserDownloadURL()
		case checksumAsset:
			sumsURL = asset.GetBrowserDownloadURL()
		}
	}
	if binURL == "" {
		return "", fmt.Errorf("release %s: no asset %q", release.GetTagName(), name)
	}
	if sumsURL == "" {
		return "", fmt.Errorf("release %s: no asset %q", release.GetTagName(), checksumAsset)
	}
	want, err := f.checksum(ctx, sumsURL, name)
	if err != nil {
		return "", fmt.Errorf("reading checksums: %w", err)
	}
	log.G(ctx).Infof("downloading %s %s", name, release.GetTagName())
	if err := f.download(ctx, binURL, dst, want); err != nil {
		return "", err
	}
	return release.GetTagName(), nil
}

func (f *YTDLPFetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTP.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// checksum finds the sha256 for name in a sha256sum formatted listing.
func (f *YTDLPFetcher) checksum(ctx context.Context, url, name string) (string, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		if strings.TrimPrefix(fields[1], "*") == name {
			return strings.ToLower(fields[0]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no checksum for %q", name)
}

func (f *YTDLPFetcher) download(ctx context.Context, url, dst, sum string) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer body.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("preparing %q: %w", filepath.Dir(dst), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("staging download: %w", err)
	}
	defer os.Remove(tmp.Name())
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		tmp.Close()
		return fmt.Errorf("downloading: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("staging download: %w", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != sum {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, sum)
	}
	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		return fmt.Errorf("marking executable: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("installing: %w", err)
	}
	return nil
}
