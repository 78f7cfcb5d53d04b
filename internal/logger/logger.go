package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. Development gets the console encoder and debug level.
func New(appEnv string) (*zap.SugaredLogger, error) {
	var (
		base *zap.Logger
		err  error
	)
	switch appEnv {
	case "development", "test":
		base, err = zap.NewDevelopment()
	default:
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return base.Sugar().With("service", "arena"), nil
}

func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
