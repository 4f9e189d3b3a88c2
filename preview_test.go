package dwmcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestRowEstimateMissing(t *testing.T) {
	t.Parallel()

	if !rowEstimateMissing(pgx.ErrNoRows) {
		t.Fatal("expected an empty estimate result to count as a missing table")
	}
	if !rowEstimateMissing(fmt.Errorf("estimate lookup: %w", pgx.ErrNoRows)) {
		t.Fatal("expected a wrapped empty result to count as a missing table")
	}
	if rowEstimateMissing(context.DeadlineExceeded) {
		t.Fatal("a timeout is not a missing table")
	}
	if rowEstimateMissing(errors.New("FATAL: connection refused")) {
		t.Fatal("a connection failure is not a missing table")
	}
}
