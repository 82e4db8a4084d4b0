// Package log provides the logging capability shared by every vws
// subsystem: a zap-based logger injected into constructors rather than
// reached for as a package-level global.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the sugared zap logger type every vws constructor accepts.
type Logger = zap.SugaredLogger

// Init builds the logger used for the life of one vws process.
//
// debug selects development-style console output at debug level; without
// it the logger runs at info level with production encoding. filePrefix,
// when non-empty, adds a rotating file core at <filePrefix>.log alongside
// the stdout core (vws owns rotation itself rather than relying on an
// external logrotate, since it has no daemon-manager wrapping it).
func Init(debug bool, filePrefix string) (*Logger, error) {
	var encoderConfig zapcore.EncoderConfig
	level := zapcore.InfoLevel
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.LevelKey = "level"
	encoderConfig.MessageKey = "message"
	encoderConfig.CallerKey = "caller"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level),
	}

	if filePrefix != "" {
		rotator := &lumberjack.Logger{
			Filename:   fmt.Sprintf("%s.log", filePrefix),
			MaxSize:    100, // megabytes
			MaxBackups: 7,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return base.Sugar(), nil
}

// Discard returns a logger that drops everything, for use in tests that
// exercise code requiring a non-nil logger.
func Discard() *Logger {
	return zap.NewNop().Sugar()
}
