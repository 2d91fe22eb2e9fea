package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger: JSON output in prod, human-readable
// development output everywhere else.
func NewLogger(env, service string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("build %s logger: %w", env, err)
	}

	return logger.With(zap.String("service", service)), nil
}
