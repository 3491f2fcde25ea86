// Package export writes the history window as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/obsidianstack/envwatch/internal/reading"
)

// Header is the first CSV row.
var Header = []string{"timestamp", "temperature", "humidity", "flame", "light"}

// WriteCSV writes readings, oldest first, with RFC3339 timestamps.
func WriteCSV(w io.Writer, readings []reading.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, r := range readings {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			strconv.FormatFloat(r.Humidity, 'f', -1, 64),
			strconv.Itoa(r.Flame),
			strconv.Itoa(r.Light),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

// Filename returns the download name for an export taken at now.
func Filename(now time.Time) string {
	return "esp32_data_" + now.Format("20060102_150405") + ".csv"
}
