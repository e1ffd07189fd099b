package handlers

import (
	"net/http/httptest"
	"testing"
)

func TestAgendaLink_SchemeFollowsRequest(t *testing.T) {
	// Plain HTTP.
	r := httptest.NewRequest("GET", "http://school.example/qr/abc.png", nil)
	if got := agendaLink(r, "abc"); got != "http://school.example/student/agenda?section=abc" {
		t.Errorf("http request: got %q", got)
	}

	// Direct TLS.
	r = httptest.NewRequest("GET", "https://school.example/qr/abc.png", nil)
	if got := agendaLink(r, "abc"); got != "https://school.example/student/agenda?section=abc" {
		t.Errorf("tls request: got %q", got)
	}

	// Behind a TLS-terminating proxy.
	r = httptest.NewRequest("GET", "http://school.example/qr/abc.png", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	if got := agendaLink(r, "abc"); got != "https://school.example/student/agenda?section=abc" {
		t.Errorf("forwarded proto: got %q", got)
	}
}
