// Package speech transcribes audio through an OpenAI-compatible
// transcription endpoint.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

// Result holds the transcription output: the full text plus a WebVTT
// rendering of the timed segments. VTT is empty when the backend returned
// no segment timing.
type Result struct {
	Text string
	VTT  string
}

// Transcriber converts audio bytes into a transcription result.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error)
}

// Client calls a hosted speech-to-text service.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a client from the speech configuration section.
func NewClient(cfg config.Speech) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads audio and returns the recognized text with segment
// timing rendered as WebVTT.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio payload is empty")
	}
	if filename == "" {
		filename = "audio.mp3"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, truncate(payload, 512))
	}

	var parsed verboseResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, fmt.Errorf("transcription response contained no text")
	}

	return &Result{Text: text, VTT: renderVTT(parsed)}, nil
}

// renderVTT produces a WebVTT document from segment timing, or an empty
// string when the response carried none.
func renderVTT(resp verboseResponse) string {
	if len(resp.Segments) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	cue := 0
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cue++
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", cue, formatTimestamp(seg.Start), formatTimestamp(seg.End), text)
	}
	if cue == 0 {
		return ""
	}
	return sb.String()
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := time.Duration(seconds * float64(time.Second))
	hours := int(total / time.Hour)
	minutes := int(total/time.Minute) % 60
	secs := int(total/time.Second) % 60
	millis := int(total/time.Millisecond) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

func truncate(payload []byte, limit int) string {
	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
