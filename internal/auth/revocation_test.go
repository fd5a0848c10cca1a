package auth

import (
	"testing"
	"time"
)

func TestRevocationMarkersRevokes(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	markers := RevocationMarkers{Login: at}

	if !markers.Revokes(at.Add(-time.Second)) {
		t.Fatalf("older token should be revoked")
	}
	if markers.Revokes(at) {
		t.Fatalf("token issued at the marker instant should survive")
	}
	if (RevocationMarkers{}).Revokes(at) {
		t.Fatalf("no markers should revoke nothing")
	}
}
