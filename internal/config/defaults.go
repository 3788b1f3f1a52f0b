package config

const (
	defaultDataDir    = "~/.local/share/likeness"
	defaultLogDir     = "~/.local/share/likeness/logs"
	defaultStagingDir = "~/.local/share/likeness/staging"
	defaultAPIBind    = "127.0.0.1:7411"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultSampleRate = 16000
	defaultFrameRate  = 2.0

	defaultVADFrameMs         = 30
	defaultVADAggressiveness  = 2
	defaultVADEnergyThreshold = 0.02
	defaultVADMinSpeechMs     = 100

	defaultModelTimeoutSeconds = 120

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			StagingDir: defaultStagingDir,
			APIBind:    defaultAPIBind,
		},
		Media: Media{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			SampleRate:    defaultSampleRate,
			FrameRate:     defaultFrameRate,
		},
		VAD: VAD{
			FrameMs:         defaultVADFrameMs,
			Aggressiveness:  defaultVADAggressiveness,
			EnergyThreshold: defaultVADEnergyThreshold,
			MinSpeechMs:     defaultVADMinSpeechMs,
		},
		Models: Models{
			RunnerCommand:  []string{"likeness-models"},
			TimeoutSeconds: defaultModelTimeoutSeconds,
		},
		Enrollment: Enrollment{
			VoiceTarget:            20,
			FaceTarget:             30,
			EmotionTarget:          3,
			DurationTargetSeconds:  300,
			VoiceWeight:            0.30,
			FaceWeight:             0.25,
			EmotionWeight:          0.20,
			DurationWeight:         0.15,
			SyncConsistencyWeight:  0.10,
			TotalVoiceTarget:       40,
			TotalFaceTarget:        60,
			CompletedSessionTarget: 3,
		},
		Verification: Verification{
			VoiceWeight:            0.30,
			FaceWeight:             0.25,
			SyncWeight:             0.25,
			SpeechWeight:           0.20,
			ConfidenceThreshold:    0.70,
			AnomalyLimit:           2,
			DivergenceThreshold:    0.30,
			SyncDeviationStdDevs:   2.0,
			LowSimilarityThreshold: 0.40,
			PerfectSyncThreshold:   0.95,
			SyncTolerance:          0.5,
			SpeechPresentScore:     0.7,
			SpeechAbsentScore:      0.3,
			HistoryLimit:           10,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Enrollment:     true,
			Verification:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
