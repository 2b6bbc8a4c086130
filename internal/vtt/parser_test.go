package vtt

import (
	"testing"
	"time"
)

const sampleDocument = `WEBVTT

1
00:00.000 --> 00:02.500
Hello and welcome

2
00:02.500 --> 00:05.000
to the show.

NOTE internal comment, not a cue

3
00:05.000 --> 00:07.250
Let's get started.
`

func TestParseBasicDocument(t *testing.T) {
	cues := Parse(sampleDocument, nil)
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	if cues[0].Text != "Hello and welcome" {
		t.Fatalf("unexpected first cue text %q", cues[0].Text)
	}
	if cues[0].Start != 0 || cues[0].End != 2500*time.Millisecond {
		t.Fatalf("unexpected first cue timing %v-%v", cues[0].Start, cues[0].End)
	}
	if cues[2].End != 7250*time.Millisecond {
		t.Fatalf("unexpected last cue end %v", cues[2].End)
	}
}

func TestParseTimestampForms(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"00:00.000", 0},
		{"01:30.500", 90*time.Second + 500*time.Millisecond},
		{"00:01:05.250", time.Minute + 5*time.Second + 250*time.Millisecond},
		{"02:00:00.000", 2 * time.Hour},
		{"00:45", 45 * time.Second},
		{"10:00.5", 10*time.Minute + 500*time.Millisecond},
		{"5.000", 5 * time.Second},
		{"90.250", 90*time.Second + 250*time.Millisecond},
		{"7", 7 * time.Second},
	}
	for _, tc := range cases {
		got, err := parseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: want %v got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "00:xx.000", "00:75.000", "00:00.12345"} {
		if _, err := parseTimestamp(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestParseSecondsOnlyTimestamps(t *testing.T) {
	doc := `WEBVTT

1
5.000 --> 7.500
Hello there.
`
	cues := Parse(doc, nil)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Start != 5*time.Second || cues[0].End != 7500*time.Millisecond {
		t.Fatalf("unexpected timing %v-%v", cues[0].Start, cues[0].End)
	}
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	doc := `WEBVTT

garbage --> also garbage
This cue has an unparseable timing line

00:01.000 --> 00:02.000
Survivor cue
`
	cues := Parse(doc, nil)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Text != "Survivor cue" {
		t.Fatalf("unexpected text %q", cues[0].Text)
	}
}

func TestParseJoinsMultilineText(t *testing.T) {
	doc := `WEBVTT

00:01.000 --> 00:03.000
first line
second line
`
	cues := Parse(doc, nil)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Text != "first line second line" {
		t.Fatalf("unexpected joined text %q", cues[0].Text)
	}
}

func TestParseDropsEmptyCues(t *testing.T) {
	doc := `WEBVTT

00:01.000 --> 00:02.000

00:02.000 --> 00:03.000
kept
`
	cues := Parse(doc, nil)
	if len(cues) != 1 || cues[0].Text != "kept" {
		t.Fatalf("expected only the non-empty cue, got %v", cues)
	}
}

func TestParseRejectsReversedTiming(t *testing.T) {
	doc := `WEBVTT

00:05.000 --> 00:01.000
backwards
`
	if cues := Parse(doc, nil); len(cues) != 0 {
		t.Fatalf("expected reversed cue dropped, got %v", cues)
	}
}

func TestHasHeader(t *testing.T) {
	if !HasHeader("WEBVTT\n\n00:00.000 --> 00:01.000\nhi\n") {
		t.Fatal("expected header detected")
	}
	if !HasHeader("\uFEFFWEBVTT - with metadata") {
		t.Fatal("expected header detected after BOM")
	}
	if HasHeader("just some plain text") {
		t.Fatal("expected no header")
	}
}
