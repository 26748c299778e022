package core

import (
	"errors"
	"strings"
	"time"
)

// DateParser parses dates against an ordered list of formats. The first
// format that parses wins, so "01/02/2024" follows format priority rather
// than any locale guess.
//
// A format is one of:
//   - "ISO": yyyy-MM-dd
//   - a Go reference layout, recognized by the year "2006"
//   - a Java-style pattern such as "M/d/yyyy" or "dd.MM.yyyy"
//
// Date-formatted spreadsheet cells decode to ISO text, so lists used with
// xlsx uploads should keep "ISO".
type DateParser struct {
	formats []string
	layouts []string
}

// NewDateParser compiles formats into Go layouts.
func NewDateParser(formats []string) (*DateParser, error) {
	if len(formats) == 0 {
		return nil, errors.New("date parser: at least one format is required")
	}

	p := &DateParser{
		formats: append([]string(nil), formats...),
		layouts: make([]string, len(formats)),
	}
	for i, f := range formats {
		p.layouts[i] = toLayout(f)
	}
	return p, nil
}

// Parse returns the first successful parse of s, or a *DateFormatError.
func (p *DateParser) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateFormatError{Value: s, Formats: p.formats}
}

// Formats returns the configured formats in priority order.
func (p *DateParser) Formats() []string {
	return append([]string(nil), p.formats...)
}

func toLayout(format string) string {
	switch {
	case strings.EqualFold(format, "ISO"):
		return isoDate
	case strings.Contains(format, "2006"):
		return format
	default:
		return javaPatternToLayout(format)
	}
}

// javaPatternToLayout translates the date and time letters of a Java-style
// pattern. Text inside single quotes is copied literally.
func javaPatternToLayout(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]

		if c == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}

		n := 1
		for i+n < len(pattern) && pattern[i+n] == c {
			n++
		}
		i += n

		switch c {
		case 'y', 'u':
			if n == 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M', 'L':
			switch n {
			case 1:
				b.WriteString("1")
			case 2:
				b.WriteString("01")
			case 3:
				b.WriteString("Jan")
			default:
				b.WriteString("January")
			}
		case 'd':
			if n == 1 {
				b.WriteString("2")
			} else {
				b.WriteString("02")
			}
		case 'H':
			b.WriteString("15")
		case 'm':
			b.WriteString("04")
		case 's':
			b.WriteString("05")
		default:
			b.WriteString(strings.Repeat(string(c), n))
		}
	}
	return b.String()
}
