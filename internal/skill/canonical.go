package skill

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/bytedance/gg/gslice"
)

const (
	maxNameLen  = 50
	unknownName = "unknown-skill"
)

var (
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)
	urlInText   = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)
)

// CanonicalName maps a title to its directory name: lowercase, runs of
// anything but [a-z0-9] collapsed to "-", trimmed, capped at 50 bytes.
func CanonicalName(title string) string {
	name := nonAlnumRun.ReplaceAllString(strings.ToLower(title), "-")
	name = strings.Trim(name, "-")
	if len(name) > maxNameLen {
		name = strings.TrimRight(name[:maxNameLen], "-")
	}
	if name == "" {
		return unknownName
	}
	return name
}

// SourceKind records which candidate field an install source came from.
type SourceKind string

const (
	SourceCloneURL   SourceKind = "clone_url"
	SourceInstallURL SourceKind = "install_url"
	SourceURL        SourceKind = "url"
	SourceText       SourceKind = "text"
)

type InstallSource struct {
	Kind SourceKind
	URL  string
	// Repo is set when URL points at a repository host and can be cloned.
	Repo string
}

// ResolveSource picks exactly one install source, in this order: clone URL,
// install URL, the page URL when it is on a repository host, then the first
// URL found in the description or content.
func ResolveSource(c Candidate, repoHosts []string) (InstallSource, bool) {
	if u := strings.TrimSpace(c.CloneURL); u != "" {
		return newInstallSource(SourceCloneURL, u, repoHosts), true
	}
	if u := strings.TrimSpace(c.InstallURL); u != "" {
		return newInstallSource(SourceInstallURL, u, repoHosts), true
	}
	if u := strings.TrimSpace(c.URL); u != "" {
		if src := newInstallSource(SourceURL, u, repoHosts); src.Repo != "" {
			return src, true
		}
	}
	for _, text := range []string{c.Description, c.Content} {
		if u := firstURL(text); u != "" {
			return newInstallSource(SourceText, u, repoHosts), true
		}
	}
	return InstallSource{}, false
}

func newInstallSource(kind SourceKind, raw string, repoHosts []string) InstallSource {
	return InstallSource{Kind: kind, URL: raw, Repo: repoURL(raw, repoHosts)}
}

// repoURL returns a clonable https URL when raw names owner/repo on one of
// the repository hosts.
func repoURL(raw string, repoHosts []string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !gslice.Contains(repoHosts, host) {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	repo := strings.TrimSuffix(parts[1], ".git")
	return "https://" + host + "/" + parts[0] + "/" + repo + ".git"
}

func firstURL(text string) string {
	m := urlInText.FindString(text)
	return strings.TrimRight(m, ".,;:!?*_`")
}
