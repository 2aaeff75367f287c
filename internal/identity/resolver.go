package identity

import (
	"strconv"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
)

// Config holds the matching parameters. See [shared.MatchingConfig].
type Config struct {
	SimilarityThreshold float64
	DurationBucket      int
	TitleWeight         float64
	ArtistWeight        float64
	LowConfidenceFactor float64
	MaxTokenPostings    int
}

// ConfigFrom converts the TOML matching section.
func ConfigFrom(m shared.MatchingConfig) Config {
	return Config{
		SimilarityThreshold: m.SimilarityThreshold,
		DurationBucket:      m.DurationBucketSeconds,
		TitleWeight:         m.TitleWeight,
		ArtistWeight:        m.ArtistWeight,
		LowConfidenceFactor: m.LowConfidenceFactor,
		MaxTokenPostings:    m.MaxTokenPostings,
	}
}

// DefaultConfig returns the embedded defaults (threshold 0.85, 2 second buckets, 0.6/0.4 weights).
func DefaultConfig() Config {
	return ConfigFrom(shared.DefaultConfig().Matching)
}

// Signals are the weak identity signals of a track or record.
type Signals struct {
	Title         string
	Artist        string
	Duration      int // seconds, 0 when unknown
	FileName      string
	LowConfidence bool
}

// SignalsOf extracts signals from a parsed record. An unparseable duration counts as unknown.
func SignalsOf(r *models.RawTrackRecord) Signals {
	d, _ := models.ParseDuration(r.Get(models.FieldDuration))
	return Signals{
		Title:         r.Get(models.FieldTitle),
		Artist:        r.Get(models.FieldArtist),
		Duration:      d,
		FileName:      r.Get(models.FieldFileName),
		LowConfidence: r.LowConfidence,
	}
}

// SignalsOfTrack extracts signals from a catalog track.
func SignalsOfTrack(t *models.Track) Signals {
	return Signals{Title: t.Title, Artist: t.Artist, Duration: t.Duration, FileName: t.FileName}
}

// Fingerprint is the derived identity key "title|artist|bucket". It is never stored.
type Fingerprint string

// Resolver computes fingerprints and similarity scores. It is safe for concurrent use.
type Resolver struct {
	cfg    Config
	metric *metrics.Levenshtein
}

// NewResolver returns a resolver, filling zero config values with defaults.
func NewResolver(cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.DurationBucket <= 0 {
		cfg.DurationBucket = def.DurationBucket
	}
	if cfg.TitleWeight+cfg.ArtistWeight <= 0 {
		cfg.TitleWeight, cfg.ArtistWeight = def.TitleWeight, def.ArtistWeight
	}
	if cfg.LowConfidenceFactor <= 0 {
		cfg.LowConfidenceFactor = def.LowConfidenceFactor
	}
	if cfg.MaxTokenPostings <= 0 {
		cfg.MaxTokenPostings = def.MaxTokenPostings
	}

	metric := metrics.NewLevenshtein()
	metric.CaseSensitive = true
	return &Resolver{cfg: cfg, metric: metric}
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Threshold is the minimum score for a candidate duplicate.
func (r *Resolver) Threshold() float64 {
	return r.cfg.SimilarityThreshold
}

// Bucket rounds a duration to the nearest bucket index. Unknown durations have no bucket.
func (r *Resolver) Bucket(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	b := r.cfg.DurationBucket
	return strconv.Itoa((seconds + b/2) / b)
}

// Fingerprint is deterministic and invariant under case, whitespace and punctuation changes to title and artist.
func (r *Resolver) Fingerprint(s Signals) Fingerprint {
	return Fingerprint(normTitle(s) + "|" + Normalize(s.Artist) + "|" + r.Bucket(s.Duration))
}

// Similarity scores a and b in [0,1]. Equal fingerprints score 1.0. Otherwise title and
// artist are compared independently by Levenshtein ratio and combined by weight, using
// the title alone when either artist is unknown.
func (r *Resolver) Similarity(a, b Signals) float64 {
	if r.Fingerprint(a) == r.Fingerprint(b) {
		return 1.0
	}
	return r.fallback(a, b)
}

func (r *Resolver) fallback(a, b Signals) float64 {
	ta, tb := normTitle(a), normTitle(b)
	if ta == "" || tb == "" {
		return 0
	}
	score := r.ratio(ta, tb)

	aa, ab := Normalize(a.Artist), Normalize(b.Artist)
	if aa != "" && ab != "" {
		tw, aw := r.cfg.TitleWeight, r.cfg.ArtistWeight
		score = (tw*score + aw*r.ratio(aa, ab)) / (tw + aw)
	}

	if a.LowConfidence || b.LowConfidence {
		score *= r.cfg.LowConfidenceFactor
	}
	return score
}

func (r *Resolver) ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	return strutil.Similarity(a, b, r.metric)
}

func normTitle(s Signals) string {
	if t := Normalize(s.Title); t != "" {
		return t
	}
	return Normalize(titleFromFileName(s.FileName))
}
