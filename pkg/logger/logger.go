package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	ServiceName string `yaml:"service_name" env:"LOGGER_SERVICE_NAME" env-default:"v2raygen" env-description:"Service name"`
	Level       string `yaml:"level" env:"LOGGER_LEVEL" env-default:"info" env-description:"Log level"`
	Dir         string `yaml:"dir" env:"LOGGER_DIR" env-default:"logs" env-description:"Log file directory"`
}

// New builds a SugaredLogger that tees every record to stderr and to a
// size-rotated file under cfg.Dir.
func New(cfg Config) *zap.SugaredLogger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	atomicLevel := zap.NewAtomicLevelAt(level)
	encoder := getEncoder()

	fileCore := zapcore.NewCore(encoder, getLogWriter(cfg), atomicLevel)
	consoleCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomicLevel)

	core := zapcore.NewTee(fileCore, consoleCore)

	return zap.New(core, zap.AddCaller()).Sugar()
}

func getEncoder() zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getLogWriter(cfg Config) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Dir + "/" + cfg.ServiceName + ".log",
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})
}
