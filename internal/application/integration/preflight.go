package integration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

// ConnectionChecker is an upstream that can verify its endpoint and
// credentials with one cheap request
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// Upstream is one named connection check
type Upstream struct {
	Name    string
	Checker ConnectionChecker
}

// Preflight checks every upstream once before the tickers start. Rejected
// credentials are configuration errors and are all returned together so
// startup can stop. Any other failure is logged and left to the ticks,
// which retry on their own schedule.
func Preflight(ctx context.Context, log *zap.Logger, upstreams ...Upstream) error {
	if log == nil {
		log = zap.NewNop()
	}

	var fatal []error
	for _, u := range upstreams {
		if u.Checker == nil {
			continue
		}
		err := u.Checker.CheckConnection(ctx)
		switch {
		case err == nil:
			log.Info("Upstream reachable", zap.String("upstream", u.Name))
		case errors.Is(err, shared.ErrConfiguration):
			log.Error("Upstream rejected the configuration", zap.String("upstream", u.Name), zap.Error(err))
			fatal = append(fatal, fmt.Errorf("%s: %w", u.Name, err))
		default:
			log.Warn("Upstream check failed, continuing", zap.String("upstream", u.Name), zap.Error(err))
		}
	}
	return errors.Join(fatal...)
}
