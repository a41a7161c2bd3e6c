package utils

import (
	"go.uber.org/zap"
)

// NewLogger returns a development logger for APP_ENV=development and a
// production logger otherwise.
func NewLogger(appEnv string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if appEnv == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	return logger
}
