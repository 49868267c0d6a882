package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/felixgeelhaar/truematch/internal/log"
)

// DefaultCookieFileName is the cookie file created under the client home.
const DefaultCookieFileName = "cookies.json"

// storedCookie is the on-disk form of one cookie. HttpOnly cookies are kept:
// the refresh cookie is one, and the client never reads its value. URL is
// the origin plus the cookie's effective path, enough to replay it.
type storedCookie struct {
	URL      string        `json:"url"`
	Host     string        `json:"host"`
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Domain   string        `json:"domain,omitempty"`
	Path     string        `json:"path,omitempty"`
	Expires  time.Time     `json:"expires,omitzero"`
	Secure   bool          `json:"secure,omitempty"`
	HTTPOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
}

// key identifies a cookie the way the jar does: by domain, path and name.
// Host-only cookies use the host that set them.
func (c storedCookie) key() string {
	domain := c.Domain
	if domain == "" {
		domain = c.Host
	}
	return domain + "|" + c.Path + "|" + c.Name
}

// defaultPath is the cookie path used when a Set-Cookie has none, per
// RFC 6265 section 5.1.4.
func defaultPath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

// Jar is an http.CookieJar that survives process restarts. It delegates all
// matching rules to net/http/cookiejar and mirrors every accepted cookie to a
// 0600 JSON file. Session cookies are persisted too since each CLI
// invocation is its own process.
type Jar struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]storedCookie
	now     func() time.Time
}

// NewJar creates a jar backed by the file at path, loading any cookies that
// have not expired. An empty path keeps cookies in memory only. A missing or
// unreadable file starts the jar empty.
func NewJar(path string, logger *log.Logger) (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	j := &Jar{
		path:    path,
		logger:  log.OrDefault(logger).With("component", "cookiejar"),
		jar:     inner,
		entries: make(map[string]storedCookie),
		now:     time.Now,
	}
	j.load()
	return j, nil
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	now := j.now()
	host := strings.ToLower(u.Hostname())
	for _, c := range cookies {
		path := c.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(u.Path)
		}
		sc := storedCookie{
			URL:      (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: path}).String(),
			Host:     host,
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.ToLower(strings.TrimPrefix(c.Domain, ".")),
			Path:     path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: c.SameSite,
		}
		switch {
		case c.MaxAge < 0:
			sc.Expires = now
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		if sc.expired(now) {
			delete(j.entries, sc.key())
			continue
		}
		j.entries[sc.key()] = sc
	}

	j.save()
}

// Clear forgets every cookie, in memory and on disk. Logout uses it so a
// refresh cookie the server failed to revoke cannot revive the session.
func (j *Jar) Clear() error {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar = inner
	j.entries = make(map[string]storedCookie)
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}

// Len returns the number of live cookies tracked by the jar.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	n := 0
	for _, c := range j.entries {
		if !c.expired(now) {
			n++
		}
	}
	return n
}

func (j *Jar) load() {
	if j.path == "" {
		return
	}

	data, err := os.ReadFile(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("failed to read cookie file", "path", j.path, "error", err)
		}
		return
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		j.logger.Warn("ignoring unreadable cookie file", "path", j.path, "error", err)
		return
	}

	now := j.now()
	for _, sc := range stored {
		if sc.expired(now) {
			continue
		}
		u, err := url.Parse(sc.URL)
		if err != nil {
			continue
		}
		if sc.Host == "" {
			sc.Host = strings.ToLower(u.Hostname())
		}
		j.jar.SetCookies(u, []*http.Cookie{sc.cookie()})
		j.entries[sc.key()] = sc
	}
}

// save writes the live cookies. Callers hold j.mu.
func (j *Jar) save() {
	if j.path == "" {
		return
	}

	now := j.now()
	out := make([]storedCookie, 0, len(j.entries))
	for k, c := range j.entries {
		if c.expired(now) {
			delete(j.entries, k)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].key() < out[b].key() })

	if err := writeFileAtomic(j.path, out); err != nil {
		j.logger.Warn("failed to persist cookies", "path", j.path, "error", err)
	}
}

func writeFileAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
