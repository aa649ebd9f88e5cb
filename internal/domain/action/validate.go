package action

import (
	"net/url"
	"strings"

	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
)

// Validate runs the pre-send checks from spec.md §4.5. On failure it
// returns the specific invalid_request variant; no network call may be
// attempted when this returns an error.
func Validate(req Request) *gatewayerr.Error {
	switch req.Method {
	case MethodGet, MethodPost:
	default:
		return gatewayerr.New(gatewayerr.InvalidMethod, "method must be GET or POST")
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return gatewayerr.New(gatewayerr.InvalidURL, "url must be an absolute http(s) URL")
	}

	switch req.InjectionType {
	case InjectionBearer:
	case InjectionHeader:
		if strings.TrimSpace(req.HeaderName) == "" {
			return gatewayerr.New(gatewayerr.InvalidInjectionType, "headerName is required for header injection")
		}
	default:
		return gatewayerr.New(gatewayerr.InvalidInjectionType, "injectionType must be bearer or header")
	}

	return nil
}
