package updater

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/klauspost/compress/gzip"

	"github.com/tgifai/skillhunt"
	"github.com/tgifai/skillhunt/internal/pkg/httpc"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

const (
	defaultAPIBase  = "https://api.github.com"
	repoPath        = "tgifai/skillhunt"
	checksumsAsset  = "checksums.txt"
	metadataTimeout = 15 * time.Second
)

var ErrUnknownVersion = errors.New("current version unknown (built without -ldflags)")

// Release is the subset of a GitHub release the updater reads.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// ArchiveName is the release asset built for goos/goarch.
func (r *Release) ArchiveName(goos, goarch string) string {
	return fmt.Sprintf("skillhunt_%s_%s_%s.tar.gz", r.TagName, goos, goarch)
}

func (r *Release) asset(name string) string {
	for _, a := range r.Assets {
		if a.Name == name {
			return a.BrowserDownloadURL
		}
	}
	return ""
}

// Updater checks for and applies skillhunt releases.
type Updater struct {
	current string
	apiBase string
	client  *httpc.Client
	// downloads stream to disk and bypass the client's body cap
	hc *http.Client
}

type Option func(*Updater)

func WithVersion(v string) Option {
	return func(u *Updater) { u.current = v }
}

// WithAPIBase points release lookups at another GitHub-compatible API.
func WithAPIBase(base string) Option {
	return func(u *Updater) { u.apiBase = strings.TrimRight(base, "/") }
}

func WithHTTPClient(c *httpc.Client, hc *http.Client) Option {
	return func(u *Updater) {
		if c != nil {
			u.client = c
		}
		if hc != nil {
			u.hc = hc
		}
	}
}

func New(opts ...Option) *Updater {
	u := &Updater{
		current: skillhunt.VERSION,
		apiBase: defaultAPIBase,
		client:  httpc.New(),
		hc:      &http.Client{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Updater) Current() string {
	return u.current
}

// CheckLatest returns the latest release when it is newer than the running
// version, or nil when already up to date.
func (u *Updater) CheckLatest(ctx context.Context) (*Release, error) {
	if u.current == "n/a" || u.current == "" {
		return nil, ErrUnknownVersion
	}
	local, err := semver.NewVersion(u.current)
	if err != nil {
		return nil, fmt.Errorf("parse local version %q: %w", u.current, err)
	}

	var release Release
	url := fmt.Sprintf("%s/repos/%s/releases/latest", u.apiBase, repoPath)
	resp, err := u.client.FetchJSON(ctx, url, map[string]string{"Accept": "application/vnd.github+json"}, metadataTimeout, &release)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("release API returned status %d", resp.Status)
	}

	remote, err := semver.NewVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("parse remote version %q: %w", release.TagName, err)
	}
	if !remote.GreaterThan(local) {
		return nil, nil
	}
	return &release, nil
}

// Download fetches the archive for the running platform into targetDir,
// verifies it against checksums.txt when the release carries one, and
// returns the path of the extracted binary.
func (u *Updater) Download(ctx context.Context, release *Release, targetDir string) (string, error) {
	archiveName := release.ArchiveName(runtime.GOOS, runtime.GOARCH)
	archiveURL := release.asset(archiveName)
	if archiveURL == "" {
		return "", fmt.Errorf("no asset for %s/%s in release %s", runtime.GOOS, runtime.GOARCH, release.TagName)
	}

	var expected string
	if sumURL := release.asset(checksumsAsset); sumURL != "" {
		hash, err := u.expectedHash(ctx, sumURL, archiveName)
		if err != nil {
			logs.CtxWarn(ctx, "[updater] checksums unavailable, skipping verification: %v", err)
		} else {
			expected = hash
		}
	}

	archivePath := filepath.Join(targetDir, archiveName)
	if err := u.downloadFile(ctx, archiveURL, archivePath); err != nil {
		return "", fmt.Errorf("download archive: %w", err)
	}
	defer os.Remove(archivePath)

	if expected != "" {
		actual, err := fileSHA256(archivePath)
		if err != nil {
			return "", fmt.Errorf("compute checksum: %w", err)
		}
		if actual != expected {
			return "", fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
		}
	}
	return extractBinary(archivePath, targetDir)
}

// Apply swaps the running executable for newBinary, restoring the old one if
// the swap fails.
func (u *Updater) Apply(newBinary string) error {
	current, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if current, err = filepath.EvalSymlinks(current); err != nil {
		return fmt.Errorf("resolve symlinks: %w", err)
	}
	return replaceBinary(current, newBinary)
}

func replaceBinary(current, newBinary string) error {
	backup := current + ".bak"
	_ = os.Remove(backup)

	if err := os.Rename(current, backup); err != nil {
		return fmt.Errorf("backup current binary: %w", err)
	}
	if err := os.Rename(newBinary, current); err != nil {
		if rbErr := os.Rename(backup, current); rbErr != nil {
			return fmt.Errorf("apply failed (%v) and rollback also failed (%v)", err, rbErr)
		}
		return fmt.Errorf("apply new binary (rolled back): %w", err)
	}
	if err := os.Chmod(current, 0o755); err != nil {
		logs.Warn("[updater] chmod new binary: %v", err)
	}
	_ = os.Remove(backup)
	return nil
}

func (u *Updater) expectedHash(ctx context.Context, url, archiveName string) (string, error) {
	resp, err := u.client.Fetch(ctx, url, nil, metadataTimeout)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("checksums returned status %d", resp.Status)
	}
	for _, line := range strings.Split(string(resp.Body), "\n") {
		parts := strings.Fields(line)
		if len(parts) == 2 && parts[1] == archiveName {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no checksum for %s", archiveName)
}

func (u *Updater) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", skillhunt.UserAgent())
	resp, err := u.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// extractBinary writes the first regular file of the archive into targetDir.
func extractBinary(archivePath, targetDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		dest := filepath.Join(targetDir, filepath.Base(header.Name))
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return "", err
		}
		return dest, out.Close()
	}
	return "", fmt.Errorf("no binary found in archive")
}
