// Package supabase syncs snapshots to a hosted Postgres table and logo
// images to the companion storage bucket.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
)

// DB is the subset of pgxpool.Pool the client uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Client writes snapshot rows over Postgres and logo files over the
// storage HTTP API.
type Client struct {
	db         DB
	httpClient *http.Client
	projectURL string
	serviceKey string
	bucket     string
}

// Connect opens a pgx pool against the project's Postgres DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "supabase: ping")
	}
	return pool, nil
}

// New creates a client over an open database handle.
func New(db DB, projectURL, serviceKey, bucket string) *Client {
	return &Client{
		db:         db,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		projectURL: strings.TrimSuffix(projectURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
	}
}

// WithHTTPClient replaces the storage HTTP client, for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

const migration = `
CREATE TABLE IF NOT EXISTS crypto_data (
	date        DATE NOT NULL,
	external_id TEXT NOT NULL,
	coin        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (date, external_id)
);
`

// Migrate creates the snapshot table idempotently.
func (c *Client) Migrate(ctx context.Context) error {
	_, err := c.db.Exec(ctx, migration)
	return eris.Wrap(err, "supabase: migrate")
}

const upsertSQL = `
INSERT INTO crypto_data (date, external_id, coin, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (date, external_id)
DO UPDATE SET coin = EXCLUDED.coin, updated_at = now()`

// UpsertSnapshot writes every record of a dated snapshot, returning the
// number of rows written. Records without an external id cannot be keyed
// and are skipped with a log line.
func (c *Client) UpsertSnapshot(ctx context.Context, snap *coin.Snapshot) (int, error) {
	written := 0
	for _, rec := range snap.Records {
		if rec.ExternalID == "" {
			zap.L().Warn("supabase: record has no external id, skipping",
				zap.String("coin", rec.Name))
			continue
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return written, eris.Wrapf(err, "supabase: marshal record %s", rec.Name)
		}
		if _, err := c.db.Exec(ctx, upsertSQL, snap.Date, rec.ExternalID, payload); err != nil {
			return written, eris.Wrapf(err, "supabase: upsert %s/%s", snap.Date, rec.ExternalID)
		}
		written++
	}
	return written, nil
}

// SetLogoURL writes the public logo URL back onto every row for the coin.
func (c *Client) SetLogoURL(ctx context.Context, externalID, publicURL string) error {
	_, err := c.db.Exec(ctx,
		`UPDATE crypto_data SET coin = jsonb_set(coin, '{logo_url}', to_jsonb($1::text)), updated_at = now()
		 WHERE external_id = $2`,
		publicURL, externalID,
	)
	return eris.Wrapf(err, "supabase: set logo url for %s", externalID)
}

// UploadLogo uploads a local logo file to the storage bucket and returns
// its public URL. Existing objects are overwritten.
func (c *Client) UploadLogo(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", eris.Wrap(err, "supabase: open logo file")
	}
	defer f.Close()

	name := filepath.Base(localPath)
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.projectURL, c.bucket, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return "", eris.Wrap(err, "supabase: build upload request")
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentTypeOf(name))
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "supabase: upload logo")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", eris.Errorf("supabase: storage returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.projectURL, c.bucket, name), nil
}

func contentTypeOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
