package wayfetch

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
)

// isTransientSocketFault reports timeout, connection-refused and
// connection-reset faults — the first row of the §7 error taxonomy.
func isTransientSocketFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isTransientSocketFault(urlErr.Err)
	}
	return false
}

// isProtocolFault reports an HTTP parse / keep-alive failure — the second
// row of the §7 error taxonomy. Treated as the catch-all network error that
// is not a recognized transient socket fault, matching the reference's
// broad "requests.exceptions.ConnectionError that isn't a plain socket
// timeout" bucket.
func isProtocolFault(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && !isTransientSocketFault(err)
}
