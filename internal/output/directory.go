// Package output persists what a crawl produces.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"matrusp-crawler/internal/components/assert"
	"matrusp-crawler/internal/components/telemetry"
	"matrusp-crawler/internal/scrapers/jupiter"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

const (
	CampiFile   = "campi.json"
	UnitsFile   = "unidades.json"
	CoursesFile = "cursos.json"
	DefaultOut  = "db.json"

	gzip_ext   = ".gz"
	brotli_ext = ".br"
)

const report_directory_write = "directory.write"

// Directory writes every record as a JSON file, and a gzipped copy of it
// unless noGzip is set. Brotli copies are only written when asked for.
type Directory struct {
	dir    string
	out    string
	noGzip bool
	brotli bool
	tel    telemetry.API
}

func NewDirectory(dir, out string, noGzip bool, tel telemetry.API) Directory {
	assert.NotEmptyStr(dir)
	assert.NotNil(tel)
	if out == "" {
		out = DefaultOut
	}
	return Directory{
		dir:    dir,
		out:    out,
		noGzip: noGzip,
		tel:    telemetry.NewScopedAPI("output", tel),
	}
}

// WithBrotli returns a copy of d that also writes a brotli compressed copy
// of every file, for static hosts serving precompressed content.
func (d Directory) WithBrotli() Directory {
	d.brotli = true
	return d
}

func (d Directory) writeJSON(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(d.dir, name)
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return err
	}
	d.tel.ReportDebug(report_directory_write, path, len(data))

	if d.brotli {
		err = writeBrotli(path+brotli_ext, data)
		if err != nil {
			return err
		}
	}
	if d.noGzip {
		return nil
	}
	return writeGzip(path+gzip_ext, data)
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err != nil {
		return err
	}
	err = w.Close()
	if err != nil {
		return err
	}
	return f.Close()
}

func writeBrotli(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := brotli.NewWriterLevel(f, brotli.BestCompression)
	_, err = w.Write(data)
	if err != nil {
		return err
	}
	err = w.Close()
	if err != nil {
		return err
	}
	return f.Close()
}

// WriteCampi writes the campus to unit names mapping, and the unit name to
// subject codes mapping next to it.
func (d Directory) WriteCampi(ctx context.Context, catalog *jupiter.Catalog) error {
	err := d.writeJSON(CampiFile, catalog.Campi())
	if err != nil {
		return err
	}
	return d.writeJSON(UnitsFile, catalog.UnitSubjectCodes())
}

// WriteSubject writes <code>.json, it is safe to call concurrently as every
// subject has its own file.
func (d Directory) WriteSubject(ctx context.Context, course jupiter.CourseInfo) error {
	return d.writeJSON(course.Code+".json", course)
}

func (d Directory) WriteDataset(ctx context.Context, courses []jupiter.CourseInfo) error {
	return d.writeJSON(d.out, courses)
}
