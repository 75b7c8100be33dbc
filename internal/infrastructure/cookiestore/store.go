// Package cookiestore persists the session cookie jar shared by vhybzctl and the shell.
package cookiestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrNoSession is returned by Session when no session cookie is stored.
var ErrNoSession = errors.New("no session cookie stored")

// record is the on-disk form of one cookie. A zero Expires marks a cookie
// that lives until it is cleared.
type record struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
	Expires time.Time `json:"expires,omitzero"`
}

func (r record) expired(now time.Time) bool {
	return !r.Expires.IsZero() && !r.Expires.After(now)
}

func (r record) cookie() *http.Cookie {
	path := r.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{Name: r.Name, Value: r.Value, Path: path, Secure: r.Secure, Expires: r.Expires}
}

// Jar is an http.CookieJar scoped to one origin whose cookies survive restarts.
// An empty path keeps the jar in memory only.
type Jar struct {
	path   string
	origin *url.URL
	name   string
	now    func() time.Time

	mu      sync.Mutex
	jar     *cookiejar.Jar
	records map[string]record
}

var _ http.CookieJar = (*Jar)(nil)

// Open loads the jar stored at path for origin. sessionName is the cookie that
// carries the session. A missing file yields an empty jar and expired cookies
// are dropped on load.
func Open(path, origin, sessionName string) (*Jar, error) {
	return open(path, origin, sessionName, time.Now)
}

func open(path, origin, sessionName string, now func() time.Time) (*Jar, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse origin: %w", err)
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j := &Jar{
		path:    path,
		origin:  u,
		name:    sessionName,
		now:     now,
		jar:     inner,
		records: make(map[string]record),
	}

	if path == "" {
		return j, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookie file: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(records))
	for _, r := range records {
		if r.Name == "" || r.expired(now()) {
			continue
		}
		j.records[r.Name] = r
		cookies = append(cookies, r.cookie())
	}
	inner.SetCookies(u, cookies)
	return j, nil
}

// SetCookies implements http.CookieJar and writes the jar through to disk.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if u.Host == j.origin.Host {
		j.trackLocked(cookies)
	}
	// The jar interface has no error return; a failed write keeps the in-memory state.
	_ = j.saveLocked()
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Session returns the stored session cookie value.
func (j *Jar) Session() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range j.jar.Cookies(j.origin) {
		if c.Name == j.name && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrNoSession
}

// SetSession stores value as the session cookie for the origin.
func (j *Jar) SetSession(value string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cookies := []*http.Cookie{{Name: j.name, Value: value, Path: "/"}}
	j.jar.SetCookies(j.origin, cookies)
	j.trackLocked(cookies)
	return j.saveLocked()
}

// Clear drops every cookie for the origin and removes the file.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	expired := make([]*http.Cookie, 0)
	for _, c := range j.jar.Cookies(j.origin) {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
	}
	j.jar.SetCookies(j.origin, expired)
	clear(j.records)

	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}

// Path returns the backing file, or "" for an in-memory jar.
func (j *Jar) Path() string {
	return j.path
}

func (j *Jar) saveLocked() error {
	if j.path == "" {
		return nil
	}
	now := j.now()
	records := make([]record, 0, len(j.records))
	for name, r := range j.records {
		if r.expired(now) {
			delete(j.records, name)
			continue
		}
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b record) int { return strings.Compare(a.Name, b.Name) })
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	return os.WriteFile(j.path, data, 0o600)
}

// trackLocked mirrors cookies into the persisted records, applying the same
// deletion and expiry rules as the in-memory jar.
func (j *Jar) trackLocked(cookies []*http.Cookie) {
	now := j.now()
	for _, c := range cookies {
		r := record{Name: c.Name, Value: c.Value, Path: c.Path, Secure: c.Secure}
		switch {
		case c.MaxAge < 0:
			delete(j.records, c.Name)
			continue
		case c.MaxAge > 0:
			r.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			r.Expires = c.Expires
		}
		if r.expired(now) {
			delete(j.records, c.Name)
			continue
		}
		j.records[c.Name] = r
	}
}
