package config

const (
	defaultDataDir            = "~/.local/share/scribe"
	defaultLogDir             = "~/.local/share/scribe/logs"
	defaultAPIBind            = "127.0.0.1:8378"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultSpeechModel        = "whisper-large-v3-turbo"
	defaultLLMModel           = "llama-3.2-1b-instruct"
	defaultEmbeddingModel     = "bge-large-en-v1.5"
	defaultEmbeddingDimension = 1024
	defaultSummaryMaxTokens   = 150
	defaultTitleMaxTokens     = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Speech: Speech{
			Model:          defaultSpeechModel,
			TimeoutSeconds: 300,
		},
		LLM: LLM{
			Model:            defaultLLMModel,
			SummaryMaxTokens: defaultSummaryMaxTokens,
			TitleMaxTokens:   defaultTitleMaxTokens,
		},
		Embedding: Embedding{
			Model:       defaultEmbeddingModel,
			Dimension:   defaultEmbeddingDimension,
			Parallelism: 4,
		},
		Segmenter: Segmenter{
			SentenceGapMS:        500,
			MinWordsPerSentence:  3,
			ParagraphBreakMarker: "next line",
			MinSentencesPerChunk: 2,
			MaxSentencesPerChunk: 8,
			ParagraphGapMS:       2000,
			TargetParagraphs:     2,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  15,
			HeartbeatTimeout:   120,
			MaxAttempts:        3,
		},
		Notifications: Notifications{
			Enabled:    true,
			ReplaySize: 50,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
