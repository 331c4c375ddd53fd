// Package coin defines the snapshot record for a tracked cryptocurrency.
package coin

import "time"

// TimestampLayout is the wall-clock format used in snapshot files.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one tracked coin as persisted in a dated snapshot.
//
// Pointer fields start nil and are filled in by the link resolver and the
// enrichment engine; nil means "not yet observed", which the carry-forward
// merge treats differently from an explicit zero.
type Record struct {
	Rank      int     `json:"rank" csv:"rank" parquet:"rank"`
	Name      string  `json:"name" csv:"name" parquet:"name"`
	Symbol    string  `json:"symbol" csv:"symbol" parquet:"symbol"`
	SourceURL string  `json:"source_url" csv:"source_url" parquet:"source_url"`
	Price     float64 `json:"price" csv:"price" parquet:"price"`
	MarketCap float64 `json:"market_cap" csv:"market_cap" parquet:"market_cap"`

	SocialHandle       *string  `json:"social_handle" csv:"social_handle" parquet:"social_handle,optional"`
	SocialURL          *string  `json:"social_url" csv:"social_url" parquet:"social_url,optional"`
	SocialFollowers    *float64 `json:"social_followers" csv:"social_followers" parquet:"social_followers,optional"`
	SocialLatestPostAt *string  `json:"social_latest_post_at" csv:"social_latest_post_at" parquet:"social_latest_post_at,optional"`

	RepoURL         *string  `json:"repo_url" csv:"repo_url" parquet:"repo_url,optional"`
	RepoStars       *float64 `json:"repo_stars" csv:"repo_stars" parquet:"repo_stars,optional"`
	RepoForks       *float64 `json:"repo_forks" csv:"repo_forks" parquet:"repo_forks,optional"`
	RepoLastUpdated *string  `json:"repo_last_updated" csv:"repo_last_updated" parquet:"repo_last_updated,optional"`

	LogoSourceURL *string `json:"logo_source_url" csv:"logo_source_url" parquet:"logo_source_url,optional"`
	LogoLocalPath *string `json:"logo_local_path" csv:"logo_local_path" parquet:"logo_local_path,optional"`

	// ExternalID keys price-API lookups and logo filenames. Derived from a
	// page attribute when present, otherwise from the detail-URL slug.
	ExternalID string `json:"external_id" csv:"external_id" parquet:"external_id"`

	// Fields maintained by the price reconciliation loop.
	PriceChange24h *float64 `json:"price_change_24h" csv:"price_change_24h" parquet:"price_change_24h,optional"`
	Volume24h      *float64 `json:"volume_24h" csv:"volume_24h" parquet:"volume_24h,optional"`
	LastUpdated    *string  `json:"last_updated" csv:"last_updated" parquet:"last_updated,optional"`

	CapturedAt string `json:"captured_at" csv:"captured_at" parquet:"captured_at"`
}

// Snapshot is the ordered record set produced by one collection run,
// identified by the run's calendar date (YYYY-MM-DD).
type Snapshot struct {
	Date    string
	Records []*Record
}

// FindByName returns the record with an exact name match, or nil.
func (s *Snapshot) FindByName(name string) *Record {
	if s == nil {
		return nil
	}
	for _, r := range s.Records {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// NewSnapshot creates an empty snapshot dated by the given time.
func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{Date: now.Format("2006-01-02")}
}

// String returns a pointer to s, for populating optional fields.
func String(s string) *string { return &s }

// Float returns a pointer to f, for populating optional fields.
func Float(f float64) *float64 { return &f }
