package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-crmsync/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetContactMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetContactMessage{}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorValidation {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidation, rich.TextCode)
	}
}

func TestDeliveryLogMessage_ValidatesFilter(t *testing.T) {
	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	to := from.Add(-24 * time.Hour)
	cases := []struct {
		name   string
		filter core.DeliveryLogFilter
		valid  bool
	}{
		{"defaults", core.DeliveryLogFilter{}, true},
		{"negative page", core.DeliveryLogFilter{Page: -1}, false},
		{"unknown outcome", core.DeliveryLogFilter{Outcome: "pending"}, false},
		{"reversed dates", core.DeliveryLogFilter{DateFrom: &from, DateTo: &to}, false},
		{"same day", core.DeliveryLogFilter{DateFrom: &from, DateTo: &from, Outcome: core.DeliveryOutcomeError}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := (DeliveryLogMessage{Filter: tc.filter}).Validate()
			if tc.valid && err != nil {
				t.Fatalf("expected valid filter, got %v", err)
			}
			if !tc.valid && !core.IsErrorCode(err, core.ErrorValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	var q *DeliveryStatsQuery
	_, err := q.Query(context.Background(), DeliveryStatsMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
