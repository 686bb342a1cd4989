// Package shellcache implements the versioned cache of the application
// shell's static assets. Entries are partitioned by cache generation;
// activating a generation garbage-collects every other partition, so
// cutover between deployed shell versions is atomic and needs no
// manual cache busting.
package shellcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// DBFileName is the SQLite database file inside Config.DataDir.
const DBFileName = "shellcache.db"

// DefaultManifest lists the shell assets captured at install time.
var DefaultManifest = []string{"/", "/index.html", "/manifest.json"}

// EntryPage is the cached document served to offline navigations.
const EntryPage = "/index.html"

const createEntries = `CREATE TABLE IF NOT EXISTS cache_entries (
    generation TEXT NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    status INTEGER NOT NULL,
    headers TEXT NOT NULL,
    body BLOB,
    cached_at INTEGER NOT NULL,
    PRIMARY KEY (generation, method, path)
);`

// Snapshot is a captured response: what was stored at write-back time
// and what a cache hit returns verbatim.
type Snapshot struct {
	Status int
	Header http.Header
	Body   []byte

	// crossOrigin marks a response whose redirect chain left the
	// origin. Served, never cached. Always false for cache hits.
	crossOrigin bool
}

// Cache is the asset cache engine. Phases: install populates the
// current generation's partition, activate garbage-collects the other
// partitions and switches interception on, fetch applies the
// cache-first policy per request.
type Cache struct {
	mu         sync.RWMutex
	open       bool
	active     bool
	generation string
	db         *sql.DB
	origin     *url.URL
	client     *http.Client
}

// Open initializes the cache database for the configured generation.
// Existing partitions from prior runs are preserved until Activate.
func Open(config types.Config) (*Cache, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var origin *url.URL
	if config.OriginURL != "" {
		u, err := url.Parse(config.OriginURL)
		if err != nil {
			return nil, fmt.Errorf("parse origin url: %w", err)
		}
		origin = u
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, &types.StorageError{Op: "create data directory", Err: err}
	}

	db, err := sql.Open("sqlite", filepath.Join(config.DataDir, DBFileName))
	if err != nil {
		return nil, &types.StorageError{Op: "open cache database", Err: err}
	}
	if _, err := db.Exec(createEntries); err != nil {
		db.Close()
		return nil, &types.StorageError{Op: "apply cache schema", Err: err}
	}

	return &Cache{
		open:       true,
		generation: config.CacheGeneration,
		db:         db,
		origin:     origin,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Close releases the cache database. Idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return &types.StorageError{Op: "close cache database", Err: err}
	}
	c.open = false
	c.active = false
	return nil
}

// Generation returns the configured cache generation name.
func (c *Cache) Generation() string { return c.generation }

// Active reports whether the cache has been activated.
func (c *Cache) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// stagingSuffix names the scratch partition an install writes into
// before promotion. Never a configured generation name.
const stagingSuffix = "+install"

// Install populates the current generation's partition with the given
// manifest (DefaultManifest when nil). The fetches are staged into a
// scratch partition and promoted only once every one succeeded; on any
// failure the staging partition is discarded and whatever the current
// generation already holds keeps serving. A restart that cannot reach
// the origin therefore never loses the previously installed shell.
func (c *Cache) Install(ctx context.Context, manifest []string) error {
	if manifest == nil {
		manifest = DefaultManifest
	}

	staging := c.generation + stagingSuffix
	c.dropGeneration(staging) // leftovers from a crashed install

	for _, path := range manifest {
		snap, err := c.fetchOrigin(ctx, http.MethodGet, path)
		if err == nil && snap.Status != http.StatusOK {
			err = fmt.Errorf("manifest asset %s: status %d", path, snap.Status)
		}
		if err != nil {
			c.dropGeneration(staging)
			return &types.NetworkError{Op: "install shell manifest", Err: err}
		}
		if err := c.putIn(staging, http.MethodGet, path, snap); err != nil {
			c.dropGeneration(staging)
			return err
		}
	}
	return c.promote(staging)
}

// promote atomically replaces the current generation's partition with
// the staged one.
func (c *Cache) promote(staging string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return types.ErrStoreClosed
	}

	tx, err := c.db.Begin()
	if err != nil {
		return &types.StorageError{Op: "promote shell install", Err: err}
	}
	if _, err := tx.Exec("DELETE FROM cache_entries WHERE generation = ?", c.generation); err != nil {
		tx.Rollback()
		return &types.StorageError{Op: "promote shell install", Err: err}
	}
	if _, err := tx.Exec("UPDATE cache_entries SET generation = ? WHERE generation = ?", c.generation, staging); err != nil {
		tx.Rollback()
		return &types.StorageError{Op: "promote shell install", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &types.StorageError{Op: "promote shell install", Err: err}
	}
	return nil
}

// Activate deletes every partition whose generation differs from the
// current one and switches interception on for all future requests.
func (c *Cache) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return types.ErrStoreClosed
	}
	if _, err := c.db.Exec("DELETE FROM cache_entries WHERE generation != ?", c.generation); err != nil {
		return &types.StorageError{Op: "activate cache generation", Err: err}
	}
	c.active = true
	return nil
}

// Fetch applies the interception policy for one request:
// cache-first; on a miss the network; successful basic responses are
// written back; when both fail, navigations get the cached entry page
// and subresources get nothing observable (a nil Snapshot, nil error).
func (c *Cache) Fetch(ctx context.Context, method, path string, navigation bool) (*Snapshot, error) {
	if snap, ok, err := c.Lookup(method, path); err != nil {
		return nil, err
	} else if ok {
		return snap, nil
	}

	snap, err := c.fetchOrigin(ctx, method, path)
	if err == nil {
		if cacheable(method, snap) {
			// Write-back; last writer for a key wins.
			if putErr := c.put(method, path, snap); putErr != nil {
				return snap, nil // serve the response even if the write-back fails
			}
		}
		return snap, nil
	}

	// Cache and network both failed.
	if navigation {
		if snap, ok, lookErr := c.Lookup(http.MethodGet, EntryPage); lookErr == nil && ok {
			return snap, nil
		}
		if snap, ok, lookErr := c.Lookup(http.MethodGet, "/"); lookErr == nil && ok {
			return snap, nil
		}
	}
	return nil, nil
}

// Lookup returns the cached snapshot for (method, path) in the current
// generation, if present.
func (c *Cache) Lookup(method, path string) (*Snapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.open {
		return nil, false, types.ErrStoreClosed
	}

	var status int
	var headersJSON string
	var body []byte
	err := c.db.QueryRow(
		"SELECT status, headers, body FROM cache_entries WHERE generation = ? AND method = ? AND path = ?",
		c.generation, method, path,
	).Scan(&status, &headersJSON, &body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &types.StorageError{Op: "cache lookup", Err: err}
	}

	header := http.Header{}
	if err := json.Unmarshal([]byte(headersJSON), &header); err != nil {
		return nil, false, &types.StorageError{Op: "cache lookup", Err: err}
	}
	return &Snapshot{Status: status, Header: header, Body: body}, true, nil
}

// Generations enumerates the partition names present in the database.
func (c *Cache) Generations() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.open {
		return nil, types.ErrStoreClosed
	}

	rows, err := c.db.Query("SELECT DISTINCT generation FROM cache_entries ORDER BY generation")
	if err != nil {
		return nil, &types.StorageError{Op: "enumerate generations", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, &types.StorageError{Op: "enumerate generations", Err: err}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// put stores a snapshot under the current generation.
func (c *Cache) put(method, path string, snap *Snapshot) error {
	return c.putIn(c.generation, method, path, snap)
}

// putIn stores a snapshot under the named partition.
func (c *Cache) putIn(generation, method, path string, snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return types.ErrStoreClosed
	}

	headersJSON, err := json.Marshal(snap.Header)
	if err != nil {
		return &types.StorageError{Op: "cache write-back", Err: err}
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (generation, method, path, status, headers, body, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		generation, method, path, snap.Status, string(headersJSON), snap.Body, time.Now().UnixMilli(),
	)
	if err != nil {
		return &types.StorageError{Op: "cache write-back", Err: err}
	}
	return nil
}

// dropGeneration discards one partition, used to roll back a failed
// install.
func (c *Cache) dropGeneration(generation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}
	_, _ = c.db.Exec("DELETE FROM cache_entries WHERE generation = ?", generation)
}

// fetchOrigin performs the network request against the upstream origin.
func (c *Cache) fetchOrigin(ctx context.Context, method, path string) (*Snapshot, error) {
	if c.origin == nil {
		return nil, &types.NetworkError{Op: "origin fetch", Err: fmt.Errorf("no origin configured")}
	}

	target := *c.origin
	target.Path = singleJoin(target.Path, path)
	if i := strings.Index(path, "?"); i >= 0 {
		target.Path = singleJoin(c.origin.Path, path[:i])
		target.RawQuery = path[i+1:]
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, &types.NetworkError{Op: "origin fetch", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.NetworkError{Op: "origin fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{Op: "origin fetch", Err: err}
	}

	snap := &Snapshot{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}
	// A redirect that left the origin makes the response non-basic:
	// still served, never cached.
	if resp.Request != nil && resp.Request.URL.Host != c.origin.Host {
		snap.crossOrigin = true
	}
	return snap, nil
}

// cacheable reports whether a snapshot qualifies for write-back:
// a 200, same-origin, non-redirected-cross-origin GET response.
func cacheable(method string, snap *Snapshot) bool {
	return method == http.MethodGet && snap.Status == http.StatusOK && !snap.crossOrigin
}

// singleJoin joins two URL path segments with exactly one slash.
func singleJoin(a, b string) string {
	switch {
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	}
	return a + b
}
