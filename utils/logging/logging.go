package logging

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// DATA OPERATIONS (DATA*)
	DATA_LOAD  LogCode = "DATA_LOAD"
	DATA_SKIP  LogCode = "DATA_SKIP"
	DATA_MERGE LogCode = "DATA_MERGE"

	// TOKENIZATION AND SYNTHETIC DATA
	TOKENIZE    LogCode = "TOKENIZE"
	SYNTH_BUILD LogCode = "SYNTH_BUILD"

	// MODEL OPERATIONS (MODEL*)
	MODEL_TRAIN    LogCode = "MODEL_TRAIN"
	MODEL_GENERATE LogCode = "MODEL_GENERATE"

	// RUN LIFECYCLE
	RUN_STATE  LogCode = "RUN_STATE"
	SAMPLE_LOG LogCode = "SAMPLE_LOG"
	STORAGE    LogCode = "STORAGE"
	DATAGEN    LogCode = "DATAGEN"
)

// VictoriaLogs has fixed field name for time (_time) and message(_msg). This function maps fields msg -> _msg and time -> _time.
func convertKeysToVictoriaLogs(keys []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "_time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func GetVictoriaLogsOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: convertKeysToVictoriaLogs,
		AddSource:   addSource,
	}
}

// InitLogging installs a default logger that fans out to a json log file and
// a plain text handler on stderr. The service attrs are attached to every json
// record so that runs can be filtered in the log aggregation backend.
func InitLogging(logFile *os.File, serviceAttrs ...slog.Attr) {
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, GetVictoriaLogsOptions(true))
	if len(serviceAttrs) > 0 {
		jsonHandler = jsonHandler.WithAttrs(serviceAttrs)
	}
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
	slog.Info("logging initialized", "log_file", logFile.Name())
}
