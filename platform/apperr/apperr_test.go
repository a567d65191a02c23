package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("lead"), http.StatusNotFound},
		{Validation("firstName is required"), http.StatusBadRequest},
		{Conflict("claimed"), http.StatusConflict},
		{Forbidden("not eligible"), http.StatusForbidden},
		{Internal("boom"), http.StatusInternalServerError},
		{Unavailable("store down", errors.New("dial tcp")), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("%v: HTTPStatus() = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestGetKindFollowsWrapChain(t *testing.T) {
	base := Validation("lastName is required").WithOp("routing.submit_lead")
	wrapped := fmt.Errorf("intake: %w", base)

	if !Is(wrapped, KindValidation) {
		t.Fatalf("expected wrapped error to keep KindValidation, got %v", GetKind(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("plain errors must map to KindUnknown")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Unavailable("lead store unreachable", errors.New("connection refused")).WithOp("routing.submit_lead")
	want := "routing.submit_lead: lead store unreachable: connection refused"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
