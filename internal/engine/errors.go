package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// FetchError is a classified retrieval failure.
type FetchError struct {
	Class      domain.FailureClass
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Class, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError reports a response outside [200, 300).
func StatusError(code int) *FetchError {
	return &FetchError{
		Class:      domain.ClassHTTP,
		StatusCode: code,
		Err:        fmt.Errorf("unexpected status: %d %s", code, http.StatusText(code)),
	}
}

// Classify maps an error to its failure class and, for HTTP failures, the
// status code.
func Classify(err error) (domain.FailureClass, int) {
	if err == nil {
		return domain.ClassNone, 0
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class, fe.StatusCode
	}

	if errors.Is(err, context.Canceled) {
		return domain.ClassOther, 0
	}

	var pathErr *fs.PathError
	var linkErr *os.LinkError
	if errors.As(err, &pathErr) || errors.As(err, &linkErr) {
		return domain.ClassIO, 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ClassConnection, 0
	}

	return domain.ClassOther, 0
}

// isDialError reports failures that happened before a connection existed,
// the only ones the transport retries on its own.
func isDialError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
