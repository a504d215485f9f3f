// Package config loads the small JSON document that parameterizes a
// decomposition and exchange manager: grid divisions, decomposition
// granularity, ghost extent, collective transport addresses. It mirrors
// the way aistore's cmn package switches its package-level JSON codec to
// jsoniter's stdlib-compatible configuration rather than hand-rolling a
// decoder.
package config

import (
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the on-disk shape. Grid and GhostExtent feed a decomp.Grid;
// Granularity is the getDecompositionGranularity/setDecompositionGranularity
// default from spec.md §6 (64, unless overridden); Peers lists the
// collective transport endpoints used by the HTTP collective layer.
type Config struct {
	Dim                int       `json:"dim"`
	Divisions          []int     `json:"divisions"`
	DomainLo           []float64 `json:"domain_lo"`
	DomainHi           []float64 `json:"domain_hi"`
	Periodic           []bool    `json:"periodic"`
	GhostExtent        float64   `json:"ghost_extent"`
	Granularity        int       `json:"granularity"`
	BindDecToGhost     bool      `json:"bind_dec_to_ghost"`
	Peers              []string  `json:"peers"`
	CompressBuffers    bool      `json:"compress_buffers"`
	VerifyChecksums    bool      `json:"verify_checksums"`
}

const DefaultGranularity = 64

func Default() *Config {
	return &Config{
		Dim:         3,
		Granularity: DefaultGranularity,
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = DefaultGranularity
	}
	return cfg, nil
}

func (c *Config) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(c)
}
