package diag

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	piNamespace      = "http://www.wldelft.nl/fews/PI"
	piSchemaLocation = "http://www.wldelft.nl/fews/PI http://fews.wldelft.nl/schemas/version1.0/pi-schemas/pi_diag.xsd"
)

// FEWSLevel is the Delft-FEWS diagnostic level code for l.
func FEWSLevel(l Level) int {
	switch l {
	case LevelError:
		return 1
	case LevelWarning:
		return 2
	case LevelInfo:
		return 3
	default:
		return 4
	}
}

type piDiag struct {
	XMLName        xml.Name `xml:"Diag"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	Version        string   `xml:"version,attr"`
	Lines          []piLine `xml:"line"`
}

type piLine struct {
	Level       int    `xml:"level,attr"`
	Description string `xml:"description,attr"`
}

// FEWSWriter collects events and renders them as a PI diagnostics file.
type FEWSWriter struct {
	mu     sync.Mutex
	events []Event
	min    Level
}

// NewFEWSWriter keeps events at or above min.
func NewFEWSWriter(min Level) *FEWSWriter {
	return &FEWSWriter{min: min}
}

func (w *FEWSWriter) Emit(e Event) {
	if e.Level < w.min {
		return
	}
	w.mu.Lock()
	w.events = append(w.events, e)
	w.mu.Unlock()
}

// Render writes the document for everything collected so far.
func (w *FEWSWriter) Render(out io.Writer) error {
	w.mu.Lock()
	doc := piDiag{
		Xmlns:          piNamespace,
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: piSchemaLocation,
		Version:        "1.2",
		Lines:          make([]piLine, 0, len(w.events)),
	}
	for _, e := range w.events {
		desc := e.Message
		if e.SourceID != "" {
			desc = e.SourceID + ": " + desc
		}
		doc.Lines = append(doc.Lines, piLine{
			Level:       FEWSLevel(e.Level),
			Description: fmt.Sprintf("%s [%s]", desc, e.Time.UTC().Format("2006-01-02 15:04:05")),
		})
	}
	w.mu.Unlock()

	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode diag: %w", err)
	}
	_, err := io.WriteString(out, "\n")
	return err
}

// WriteFile renders to path through a temporary file so readers never see
// a half-written document.
func (w *FEWSWriter) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create diag file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := w.Render(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
