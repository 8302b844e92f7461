package ecommerce

import (
	"fmt"
	"net/http"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
)

// connectionError classifies a failed connection check. A rejected
// credential is a configuration error, anything else is left as is so
// callers can tell a bad key from an unreachable upstream.
func connectionError(service string, err error) error {
	switch httpclient.StatusCodeOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s rejected the credentials: %w", shared.ErrConfiguration, service, err)
	}
	return fmt.Errorf("%s: connection check: %w", service, err)
}
