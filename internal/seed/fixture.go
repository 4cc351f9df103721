package seed

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/scorefix/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document layout:
//
//	records:
//	  - key: "0xA8F4..."
//	    wallet_address: "0xA8F4..."
//	    score: 50
//	    timestamp: 2024-05-01T10:00:00Z
type Fixture struct {
	Records []model.ScoreRecord `yaml:"records"`
}

// Decode reads a fixture document. Records without a key take their wallet
// address as key.
func Decode(r io.Reader) ([]model.ScoreRecord, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	seen := make(map[string]bool, len(f.Records))
	for i := range f.Records {
		rec := &f.Records[i]
		if rec.Key == "" {
			rec.Key = rec.WalletAddress
		}
		if rec.Key == "" {
			return nil, fmt.Errorf("fixture record %d has neither key nor wallet_address", i)
		}
		if seen[rec.Key] {
			return nil, fmt.Errorf("fixture key %q appears twice", rec.Key)
		}
		seen[rec.Key] = true
	}
	return f.Records, nil
}

// LoadFile reads a fixture from path.
func LoadFile(path string) ([]model.ScoreRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Encode writes records as a fixture document.
func Encode(w io.Writer, records []model.ScoreRecord) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Fixture{Records: records}); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}
