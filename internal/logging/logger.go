package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init builds the application logger: a human-readable console core, plus a
// rotated JSON file sink when logDir is non-empty.
func Init(logDir string) (*zap.Logger, error) {
	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleConfig),
		zapcore.Lock(os.Stdout),
		zapcore.DebugLevel,
	)

	if logDir == "" {
		return zap.New(consoleCore, zap.AddCaller()), nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	fileConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(fileConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, "eneatest.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}),
		zapcore.InfoLevel,
	)

	return zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller()), nil
}
