// Package scoring evaluates integral systems against historical draws.
package scoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// TicketSize is the number of numbers drawn per contest.
const TicketSize = 6

// Draw is one historical contest result.
type Draw struct {
	Date    time.Time
	Numbers [TicketSize]int
	Jolly   int
}

// LoadDraws reads the draws of a CSV archive whose date lies in [from, to].
// Each row is date,n1,...,n6,jolly with optional trailing columns; a header
// row is skipped.
func LoadDraws(path string, from, to time.Time) ([]Draw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open draws archive: %w", err)
	}
	defer f.Close()

	draws, err := ReadDraws(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Between(draws, from, to), nil
}

// ReadDraws parses a CSV archive.
func ReadDraws(r io.Reader) ([]Draw, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var draws []Draw
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && isHeader(record) {
			continue
		}
		d, err := parseDraw(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		draws = append(draws, d)
	}
	return draws, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
	return err != nil
}

func parseDraw(record []string) (Draw, error) {
	var d Draw
	if len(record) < TicketSize+2 {
		return d, fmt.Errorf("expected at least %d columns, got %d", TicketSize+2, len(record))
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
	if err != nil {
		return d, fmt.Errorf("invalid date: %w", err)
	}
	d.Date = date

	seen := make(map[int]bool, TicketSize+1)
	for i := 0; i <= TicketSize; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(record[i+1]))
		if err != nil {
			return d, fmt.Errorf("column %d: %w", i+2, err)
		}
		if v < 1 {
			return d, fmt.Errorf("column %d: invalid number %d", i+2, v)
		}
		if seen[v] {
			return d, fmt.Errorf("number %d repeated", v)
		}
		seen[v] = true
		if i < TicketSize {
			d.Numbers[i] = v
		} else {
			d.Jolly = v
		}
	}
	return d, nil
}

// Between returns the draws dated within [from, to].
func Between(draws []Draw, from, to time.Time) []Draw {
	out := make([]Draw, 0, len(draws))
	for _, d := range draws {
		if d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}
