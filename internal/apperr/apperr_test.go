package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindInvalidOperation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindDuplicateRequest, http.StatusConflict},
		{KindAlreadyFriends, http.StatusConflict},
		{KindPartialFailure, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
		{Kind("bogus"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.kind); got != tc.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("post not found"))
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not_found, got %s", KindOf(err))
	}
	if !errors.Is(err, NotFound("")) {
		t.Fatalf("expected errors.Is to match on kind")
	}
	if errors.Is(err, Forbidden("")) {
		t.Fatalf("did not expect forbidden to match")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("foreign errors should be internal")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("load user", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() != "load user: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
