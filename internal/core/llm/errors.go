package llm

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// classify turns throttling responses into *core.RateLimitError, carrying the server's retry hint.
// Any other error is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ae.HTTPCode() != http.StatusTooManyRequests && ae.GRPCStatus().Code() != codes.ResourceExhausted {
			return err
		}
		var hint time.Duration
		if ri := ae.Details().RetryInfo; ri != nil {
			hint = ri.GetRetryDelay().AsDuration()
		}
		return &core.RateLimitError{RetryAfter: hint, Err: err}
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusTooManyRequests {
		return &core.RateLimitError{RetryAfter: retryAfter(ge.Header), Err: err}
	}
	return err
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
