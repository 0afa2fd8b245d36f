package errors

import (
	"fmt"
	"testing"
)

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("something broke")
	ee := New(err).Build()

	if ee.Error() != "something broke" {
		t.Errorf("expected message 'something broke', got %q", ee.Error())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("expected generic category, got %q", ee.Category)
	}
	if ee.GetTimestamp().IsZero() {
		t.Error("expected a timestamp on built error")
	}
}

func TestBuild_SentinelCategoryDetection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{"schema", fmt.Errorf("%w: pk missing", ErrSchema), CategorySchema},
		{"query prepare", fmt.Errorf("%w: 2 args, 1 placeholder", ErrQueryPrepare), CategoryQueryPrepare},
		{"store", fmt.Errorf("%w: driver said no", ErrStore), CategoryStore},
		{"invalid status", fmt.Errorf("%w: got maybe", ErrInvalidStatus), CategoryValidation},
		{"persist", fmt.Errorf("%w: option unchanged", ErrPersist), CategoryPersist},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ee := New(tc.err).Build()
			if ee.Category != tc.category {
				t.Errorf("expected category %q, got %q", tc.category, ee.Category)
			}
		})
	}
}

func TestIs_SentinelSurvivesWrapping(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("%w: status %q", ErrInvalidStatus, "maybe")
	ee := New(inner).Component("migration").Category(CategoryValidation).Build()

	if !Is(ee, ErrInvalidStatus) {
		t.Error("expected errors.Is to find ErrInvalidStatus through EnhancedError")
	}
	if Is(ee, ErrStore) {
		t.Error("did not expect ErrStore in the chain")
	}
}

func TestIs_MatchesOnCategory(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryStore).Build()
	b := New(NewStd("b")).Category(CategoryStore).Build()
	c := New(NewStd("c")).Category(CategorySchema).Build()

	if !Is(a, b) {
		t.Error("expected two store-category errors to match")
	}
	if Is(a, c) {
		t.Error("store and schema categories must not match")
	}
}

func TestBuilder_ContextAndComponent(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).
		Component("store").
		Category(CategoryStore).
		TableContext("ln_modules").
		SiteContext(3).
		Priority(PriorityHigh).
		Build()

	if ee.GetComponent() != "store" {
		t.Errorf("expected component store, got %q", ee.GetComponent())
	}
	ctx := ee.GetContext()
	if ctx["table"] != "ln_modules" {
		t.Errorf("expected table context, got %v", ctx["table"])
	}
	if ctx["site_id"] != uint64(3) {
		t.Errorf("expected site context, got %v", ctx["site_id"])
	}
	if ee.GetPriority() != PriorityHigh {
		t.Errorf("expected high priority, got %q", ee.GetPriority())
	}

	// Mutating the copy must not touch the error's own context.
	ctx["table"] = "other"
	if ee.GetContext()["table"] != "ln_modules" {
		t.Error("GetContext must return a defensive copy")
	}
}

func TestPriority_InvalidFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Priority("urgent!!").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("expected medium fallback, got %q", ee.GetPriority())
	}
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", New(NewStd("inner")).Category(CategoryNotFound).Build())
	if !IsCategory(wrapped, CategoryNotFound) {
		t.Error("expected IsCategory to see through fmt.Errorf wrapping")
	}
	if !IsNotFound(wrapped) {
		t.Error("expected IsNotFound helper to match")
	}
}
