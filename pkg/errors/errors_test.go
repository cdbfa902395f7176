package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrModelNotFound, http.StatusNotFound},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrInvalidFormat, http.StatusBadRequest},
		{ErrEmptyDataSet, http.StatusUnprocessableEntity},
		{ErrNoFeatures, http.StatusUnprocessableEntity},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrTimeout, http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
		// Wrapped sentinels map the same way.
		{fmt.Errorf("loading model: %w", ErrModelNotFound), http.StatusNotFound},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.err); got != c.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestAppError(t *testing.T) {
	appErr := Newf(ErrInvalidInput, http.StatusBadRequest, "feature %d out of range", 9)

	if !errors.Is(appErr, ErrInvalidInput) {
		t.Error("AppError should unwrap to its sentinel")
	}
	if got := HTTPStatusCode(appErr); got != http.StatusBadRequest {
		t.Errorf("HTTPStatusCode = %d, want 400", got)
	}
	want := "invalid input: feature 9 out of range"
	if appErr.Error() != want {
		t.Errorf("Error() = %q, want %q", appErr.Error(), want)
	}
}
