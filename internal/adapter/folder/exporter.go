package folder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
)

// NoData is written for masked pixels.
const NoData = -9999

// Exporter writes each raster as an ESRI ASCII grid under
// <dir>/<folder>/<description>.asc with a JSON metadata sidecar. Rasters
// carrying a legend are also rendered to a paletted PNG.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// NewExporter creates a folder exporter rooted at dir.
func NewExporter(dir string, logger *slog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Name implements pipeline.Exporter.
func (e *Exporter) Name() string { return "folder" }

// Export implements pipeline.Exporter.
func (e *Exporter) Export(ctx context.Context, req domain.ExportRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(e.dir, req.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export folder: %w", err)
	}
	base := filepath.Join(dir, req.Description)

	if err := writeFile(base+".asc", func(f *os.File) error { return WriteASCIIGrid(f, req.Raster) }); err != nil {
		return err
	}
	if err := writeFile(base+".json", func(f *os.File) error { return writeMetadata(f, req) }); err != nil {
		return err
	}
	if req.Legend != nil {
		if err := writeFile(base+".png", func(f *os.File) error { return WritePNG(f, req.Raster, *req.Legend) }); err != nil {
			return err
		}
	}

	e.logger.Debug("raster exported", "path", base+".asc", "valid_pixels", req.Raster.Valid())
	return nil
}

// fileMode matches the archive fixture files.
const fileMode = 0o644

// writeFile writes through a temp file and renames it into place with
// fileMode permissions.
func writeFile(path string, fn func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp.Name(), path)
}

// WriteASCIIGrid encodes r in the ESRI ASCII grid format.
func WriteASCIIGrid(out io.Writer, r *domain.Raster) error {
	w := bufio.NewWriter(out)
	g := r.Grid
	fmt.Fprintf(w, "ncols %d\n", g.Width)
	fmt.Fprintf(w, "nrows %d\n", g.Height)
	fmt.Fprintf(w, "xllcorner %s\n", formatFloat(g.West))
	fmt.Fprintf(w, "yllcorner %s\n", formatFloat(g.South()))
	fmt.Fprintf(w, "cellsize %s\n", formatFloat(g.CellSize))
	fmt.Fprintf(w, "NODATA_value %d\n", NoData)

	row := make([]string, g.Width)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := r.Data[y*g.Width+x]
			if domain.Masked(v) {
				row[x] = strconv.Itoa(NoData)
				continue
			}
			row[x] = formatFloat(v)
		}
		w.WriteString(strings.Join(row, " "))
		w.WriteByte('\n')
	}
	return w.Flush()
}

// WritePNG renders class values 1..len(palette) with the legend palette.
// Masked pixels and values outside the legend are transparent.
func WritePNG(out io.Writer, r *domain.Raster, legend domain.Legend) error {
	palette := make([]color.NRGBA, len(legend.Palette))
	for i, hex := range legend.Palette {
		c, err := parseHexColor(hex)
		if err != nil {
			return err
		}
		palette[i] = c
	}

	g := r.Grid
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range r.Data {
		if domain.Masked(v) {
			continue
		}
		class := int(v)
		if class < 1 || class > len(palette) || float64(class) != v {
			continue
		}
		img.SetNRGBA(i%g.Width, i/g.Width, palette[class-1])
	}
	return png.Encode(out, img)
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid palette color %q", s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid palette color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

type metadata struct {
	RunID       string         `json:"run_id"`
	Variable    string         `json:"variable"`
	Month       string         `json:"month"`
	Description string         `json:"description"`
	Folder      string         `json:"folder"`
	Scale       float64        `json:"scale"`
	Region      domain.Polygon `json:"region"`
	ValidPixels int            `json:"valid_pixels"`
	Legend      *domain.Legend `json:"legend,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

func writeMetadata(out io.Writer, req domain.ExportRequest) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata{
		RunID:       req.RunID,
		Variable:    req.Variable,
		Month:       req.Key.String(),
		Description: req.Description,
		Folder:      req.Folder,
		Scale:       req.Scale,
		Region:      req.Region,
		ValidPixels: req.Raster.Valid(),
		Legend:      req.Legend,
		ProcessedAt: req.ProcessedAt,
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
