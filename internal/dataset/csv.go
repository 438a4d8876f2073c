// Package dataset turns raw minute-bar CSV exports into normalized feature series.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultStartTimestamp is 2021-01-01 00:00:00 UTC. Older rows are dropped.
const DefaultStartTimestamp int64 = 1609459200

// Bar is a single OHLCV minute bar
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// LoadOptions controls CSV parsing
type LoadOptions struct {
	StartTimestamp int64  // Rows strictly older than this are skipped
	VolumeColumn   string // Header of the volume column; "Volume BTC" then "Volume" when empty
}

var timestampColumns = []string{"unix", "unix timestamp", "timestamp", "date"}

// LoadCSV parses a header-prefixed OHLCV export. The result is sorted oldest first.
func LoadCSV(r io.Reader, opts LoadOptions) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols, err := resolveColumns(header, opts.VolumeColumn)
	if err != nil {
		return nil, err
	}

	var bars []Bar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		bar, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.Timestamp < opts.StartTimestamp {
			continue
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})

	return bars, nil
}

type columnIndex struct {
	timestamp int
	isDate    bool
	open      int
	high      int
	low       int
	close     int
	volume    int
}

func resolveColumns(header []string, volumeColumn string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}

	lookup := func(names ...string) (int, string, bool) {
		for _, n := range names {
			if i, ok := positions[strings.ToLower(n)]; ok {
				return i, strings.ToLower(n), true
			}
		}
		return -1, "", false
	}

	var idx columnIndex
	var ok bool
	var name string

	if idx.timestamp, name, ok = lookup(timestampColumns...); !ok {
		return idx, fmt.Errorf("csv header has no timestamp column (tried %v)", timestampColumns)
	}
	idx.isDate = name == "date"

	required := []struct {
		dst  *int
		name string
	}{
		{&idx.open, "Open"},
		{&idx.high, "High"},
		{&idx.low, "Low"},
		{&idx.close, "Close"},
	}
	for _, r := range required {
		if *r.dst, _, ok = lookup(r.name); !ok {
			return idx, fmt.Errorf("csv header has no %q column", r.name)
		}
	}

	volumeNames := []string{"Volume BTC", "Volume"}
	if volumeColumn != "" {
		volumeNames = []string{volumeColumn}
	}
	if idx.volume, _, ok = lookup(volumeNames...); !ok {
		return idx, fmt.Errorf("csv header has no volume column (tried %v)", volumeNames)
	}

	return idx, nil
}

func parseRecord(record []string, cols columnIndex) (Bar, error) {
	field := func(i int) (string, error) {
		if i >= len(record) {
			return "", fmt.Errorf("expected at least %d fields, got %d", i+1, len(record))
		}
		return strings.TrimSpace(record[i]), nil
	}
	number := func(i int, name string) (float64, error) {
		raw, err := field(i)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		return v, nil
	}

	var bar Bar
	raw, err := field(cols.timestamp)
	if err != nil {
		return bar, err
	}
	if bar.Timestamp, err = parseTimestamp(raw, cols.isDate); err != nil {
		return bar, err
	}
	if bar.Open, err = number(cols.open, "open"); err != nil {
		return bar, err
	}
	if bar.High, err = number(cols.high, "high"); err != nil {
		return bar, err
	}
	if bar.Low, err = number(cols.low, "low"); err != nil {
		return bar, err
	}
	if bar.Close, err = number(cols.close, "close"); err != nil {
		return bar, err
	}
	if bar.Volume, err = number(cols.volume, "volume"); err != nil {
		return bar, err
	}

	return bar, nil
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimestamp(raw string, isDate bool) (int64, error) {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		ts := int64(v)
		// Millisecond exports
		if ts > 1e12 {
			ts /= 1000
		}
		return ts, nil
	}
	if !isDate {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q", raw)
}
