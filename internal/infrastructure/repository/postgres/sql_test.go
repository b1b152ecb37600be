package postgres

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	if !isNotFound(sql.ErrNoRows) {
		t.Fatalf("sql.ErrNoRows must be a not-found")
	}
	if isNotFound(fmt.Errorf("boom")) {
		t.Fatalf("arbitrary errors are not not-found")
	}
	if isNotFound(nil) {
		t.Fatalf("nil is not not-found")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	violation := &pq.Error{Code: "23505", Constraint: eventStreamVersionConstraint}

	if !isUniqueViolation(violation, eventStreamVersionConstraint) {
		t.Fatalf("expected constraint match")
	}
	if !isUniqueViolation(violation, "") {
		t.Fatalf("empty constraint must match any unique violation")
	}
	if isUniqueViolation(violation, eventIDConstraint) {
		t.Fatalf("different constraint must not match")
	}

	wrapped := fmt.Errorf("insert event: %w", violation)
	if !isUniqueViolation(wrapped, eventStreamVersionConstraint) {
		t.Fatalf("wrapped pq errors must still match")
	}

	otherCode := &pq.Error{Code: "23503", Constraint: eventStreamVersionConstraint}
	if isUniqueViolation(otherCode, eventStreamVersionConstraint) {
		t.Fatalf("non-23505 codes are not unique violations")
	}
	if isUniqueViolation(fmt.Errorf("boom"), "") {
		t.Fatalf("non-pq errors are not unique violations")
	}
}

func TestUnixTimeRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 20, 45, 12, 0, time.UTC)
	if got := unixToTime(timeToUnix(at)); !got.Equal(at) {
		t.Fatalf("round trip changed the instant: %s != %s", got, at)
	}
	if unixToTime(0) != time.Unix(0, 0).UTC() {
		t.Fatalf("zero must map to the epoch")
	}
}
