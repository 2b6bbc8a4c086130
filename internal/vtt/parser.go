package vtt

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"scribe/internal/logging"
)

// Cue is a single timed caption extracted from a WebVTT document.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// HasHeader reports whether content begins with the WEBVTT signature.
func HasHeader(content string) bool {
	trimmed := strings.TrimPrefix(content, "\uFEFF")
	return strings.HasPrefix(strings.TrimSpace(trimmed), "WEBVTT")
}

// Parse extracts cues from a WebVTT document. Malformed cue blocks are
// skipped with a warning rather than aborting the whole document; cues
// with empty text are dropped.
func Parse(content string, logger *slog.Logger) []Cue {
	if logger == nil {
		logger = logging.NewNop()
	}

	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var cues []Cue
	blocks := strings.Split(content, "\n\n")
	for _, block := range blocks {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		if strings.HasPrefix(lines[0], "WEBVTT") || strings.HasPrefix(lines[0], "NOTE") || strings.HasPrefix(lines[0], "STYLE") || strings.HasPrefix(lines[0], "REGION") {
			continue
		}

		// Optional numeric (or arbitrary) cue identifier precedes the timing line.
		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx == -1 {
			continue
		}

		start, end, err := parseTimingLine(lines[timingIdx])
		if err != nil {
			logger.Warn("skipping malformed cue",
				logging.String("line", lines[timingIdx]),
				logging.Error(err))
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[timingIdx+1:], " "))
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Start: start, End: end, Text: text})
	}
	return cues
}

func nonEmptyLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("missing arrow separator")
	}

	startText := strings.TrimSpace(parts[0])
	// Cue settings (position, align) may trail the end timestamp.
	endFields := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("missing end timestamp")
	}

	start, err := parseTimestamp(startText)
	if err != nil {
		return 0, 0, fmt.Errorf("start timestamp %q: %w", startText, err)
	}
	end, err := parseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("end timestamp %q: %w", endFields[0], err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("end precedes start")
	}
	return start, end, nil
}

// parseTimestamp accepts SS.mmm, MM:SS.mmm and HH:MM:SS.mmm forms, with
// the milliseconds component optional.
func parseTimestamp(value string) (time.Duration, error) {
	timePart := value
	millis := 0
	if dot := strings.LastIndex(value, "."); dot != -1 {
		timePart = value[:dot]
		fraction := value[dot+1:]
		if fraction == "" {
			return 0, fmt.Errorf("empty fractional component")
		}
		parsed, err := strconv.Atoi(fraction)
		if err != nil {
			return 0, fmt.Errorf("fractional component: %w", err)
		}
		switch len(fraction) {
		case 1:
			millis = parsed * 100
		case 2:
			millis = parsed * 10
		case 3:
			millis = parsed
		default:
			return 0, fmt.Errorf("fractional component has %d digits", len(fraction))
		}
	}

	fields := strings.Split(timePart, ":")
	var hours, minutes, seconds int
	var err error
	switch len(fields) {
	case 1:
		seconds, err = strconv.Atoi(fields[0])
	case 2:
		minutes, err = strconv.Atoi(fields[0])
		if err == nil {
			seconds, err = strconv.Atoi(fields[1])
		}
	case 3:
		hours, err = strconv.Atoi(fields[0])
		if err == nil {
			minutes, err = strconv.Atoi(fields[1])
		}
		if err == nil {
			seconds, err = strconv.Atoi(fields[2])
		}
	default:
		return 0, fmt.Errorf("expected SS, MM:SS or HH:MM:SS, got %d fields", len(fields))
	}
	if err != nil {
		return 0, fmt.Errorf("numeric component: %w", err)
	}
	if minutes < 0 || seconds < 0 || hours < 0 {
		return 0, fmt.Errorf("negative time component")
	}
	// Bare seconds are unbounded; clock components are not.
	if (len(fields) >= 2 && seconds > 59) || (len(fields) == 3 && minutes > 59) {
		return 0, fmt.Errorf("time component out of range")
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}
