// Package listcache persists the last known session list per working
// directory. It is a last-resort fallback: when the live session-list
// fetch comes back empty twice in a row, the cached list is served
// instead, as long as it has not expired.
package listcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/x/etag"
	"github.com/pkg/errors"

	"github.com/hatcher/sessionhub/pkg/logs"
	"github.com/hatcher/sessionhub/wire"
)

const DefaultTTL = time.Hour

type entry struct {
	WorkingDir string             `json:"working_dir"`
	SavedAt    int64              `json:"saved_at"`
	Tag        string             `json:"tag"`
	Sessions   []wire.SessionInfo `json:"sessions"`
}

type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New returns a cache rooted at dir with the default 1 hour TTL.
func New(dir string) *Cache {
	return &Cache{dir: dir, ttl: DefaultTTL, now: time.Now}
}

func (c *Cache) file(workingDir string) string {
	sum := sha256.Sum256([]byte(workingDir))
	return filepath.Join(c.dir, "sessions-"+hex.EncodeToString(sum[:8])+".json")
}

func (c *Cache) read(workingDir string) (entry, error) {
	var e entry
	data, err := os.ReadFile(c.file(workingDir))
	if err != nil {
		return e, errors.Wrap(err, "read session list cache")
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, errors.Wrap(err, "decode session list cache")
	}
	return e, nil
}

func sessionsTag(sessions []wire.SessionInfo) (string, error) {
	data, err := json.Marshal(sessions)
	if err != nil {
		return "", errors.Wrap(err, "encode session list")
	}
	return etag.Of(data), nil
}

// Get returns the cached session list for workingDir together with its
// content tag. Expired, missing, or tag-mismatched (partially written)
// entries return an error.
func (c *Cache) Get(workingDir string) ([]wire.SessionInfo, string, error) {
	e, err := c.read(workingDir)
	if err != nil {
		return nil, "", err
	}
	if c.now().Sub(time.UnixMilli(e.SavedAt)) > c.ttl {
		return nil, "", errors.New("session list cache expired")
	}
	tag, err := sessionsTag(e.Sessions)
	if err != nil || tag != e.Tag {
		return nil, "", errors.New("session list cache corrupt")
	}
	return e.Sessions, e.Tag, nil
}

// Store writes the session list for workingDir. When a still-fresh entry
// with the same content tag is already on disk, the write is skipped.
func (c *Cache) Store(workingDir string, sessions []wire.SessionInfo) error {
	tag, err := sessionsTag(sessions)
	if err != nil {
		return err
	}
	if prev, perr := c.read(workingDir); perr == nil && prev.Tag == tag &&
		c.now().Sub(time.UnixMilli(prev.SavedAt)) <= c.ttl {
		logs.Debugf("session list for %s unchanged (etag %s), keeping cache", workingDir, tag)
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "create session list cache dir")
	}
	data, err := json.Marshal(entry{
		WorkingDir: workingDir,
		SavedAt:    c.now().UnixMilli(),
		Tag:        tag,
		Sessions:   sessions,
	})
	if err != nil {
		return errors.Wrap(err, "encode session list cache")
	}
	if err := os.WriteFile(c.file(workingDir), data, 0o644); err != nil {
		return errors.Wrap(err, "write session list cache")
	}
	logs.Debugf("saved session list cache for %s (%d sessions)", workingDir, len(sessions))
	return nil
}
