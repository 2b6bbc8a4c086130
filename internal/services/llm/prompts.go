package llm

import "strings"

const (
	// DefaultTitle and DefaultSummary stand in when generation fails;
	// the pipeline never blocks on the language model.
	DefaultTitle   = "Untitled Transcription"
	DefaultSummary = "No summary available"

	// Long transcripts are truncated before prompting so the request
	// stays inside the model context window.
	maxPromptChars = 12000
)

// SummaryPrompt asks for a compact summary of the transcript.
func SummaryPrompt(transcript string) string {
	return "Summarize the following transcription in two or three sentences. " +
		"Respond with only the summary, no preamble.\n\nTranscription:\n" +
		clampPrompt(transcript)
}

// TitlePrompt asks for a short title derived from the summary.
func TitlePrompt(summary string) string {
	return "Write a short descriptive title (at most eight words) for a transcription with the following summary. " +
		"Respond with only the title, no quotes and no preamble.\n\nSummary:\n" +
		clampPrompt(summary)
}

// CleanTitle strips quoting and collapses whitespace in generated titles.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'`)
	return strings.Join(strings.Fields(title), " ")
}

func clampPrompt(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if len(transcript) <= maxPromptChars {
		return transcript
	}
	return transcript[:maxPromptChars]
}
