package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
)

// Archive is the on-disk form of an offline raster archive.
type Archive struct {
	GeneratedAt time.Time `json:"generated_at"`
	Records     []Record  `json:"records"`
}

// Record is one time-stamped raster of one band.
type Record struct {
	Band string      `json:"band"`
	Time time.Time   `json:"time"`
	Grid domain.Grid `json:"grid"`
	Data Values      `json:"data"`
}

// Values encodes masked pixels as JSON null.
type Values []float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}

// Raster returns the record as a domain raster.
func (r Record) Raster() (*domain.Raster, error) {
	if len(r.Data) != r.Grid.Len() {
		return nil, fmt.Errorf("record %s %s: %d values for %d pixels: %w",
			r.Band, r.Time.Format(time.DateOnly), len(r.Data), r.Grid.Len(), domain.ErrShapeMismatch)
	}
	return &domain.Raster{Grid: r.Grid, Data: []float64(r.Data)}, nil
}

// ReadArchive loads an archive file.
func ReadArchive(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &a, nil
}

// WriteArchive writes a as JSON.
func WriteArchive(path string, a *Archive) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}
