package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult_OkErr(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Error("Ok result misreported")
	}
	v, err := ok.Unwrap()
	if v != 42 || err != nil {
		t.Errorf("Unwrap = (%d, %v)", v, err)
	}

	boom := errors.New("boom")
	bad := Err[int](boom)
	if bad.IsOk() {
		t.Error("Err result misreported")
	}
	if _, err := bad.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("Unwrap err = %v", err)
	}
	if got := bad.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr = %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Error("expected ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("expected error")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	vals, err := all.Unwrap()
	if err != nil || len(vals) != 3 {
		t.Fatalf("Collect = (%v, %v)", vals, err)
	}

	boom := errors.New("boom")
	partial := Collect([]Result[int]{Ok(1), Err[int](boom)})
	if _, err := partial.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestThen_Composes(t *testing.T) {
	double := MapStage(func(n int) int { return n * 2 })
	toStr := MapStage(func(n int) string {
		if n == 8 {
			return "eight"
		}
		return "other"
	})
	stage := Then(double, toStr)
	got, err := stage(context.Background(), 4).Unwrap()
	if err != nil || got != "eight" {
		t.Errorf("stage = (%q, %v)", got, err)
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	fail := Stage[int, int](func(context.Context, int) Result[int] { return Err[int](boom) })
	var called bool
	second := Stage[int, int](func(_ context.Context, n int) Result[int] {
		called = true
		return Ok(n)
	})
	r := Then(fail, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if called {
		t.Error("second stage ran after failure")
	}
}

func TestTraced_PreservesResult(t *testing.T) {
	stage := Traced("double", MapStage(func(n int) int { return n * 2 }))
	got, err := stage(context.Background(), 3).Unwrap()
	if err != nil || got != 6 {
		t.Errorf("traced stage = (%d, %v)", got, err)
	}

	boom := errors.New("boom")
	failing := Traced("fail", Stage[int, int](func(context.Context, int) Result[int] {
		return Err[int](boom)
	}))
	if _, err := failing(context.Background(), 1).Unwrap(); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestParMap_PreservesOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	out := ParMap(items, 4, func(n int) int { return n * n })
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}

func TestParMap_Empty(t *testing.T) {
	out := ParMap(nil, 4, func(n int) int { return n })
	if len(out) != 0 {
		t.Errorf("expected empty output")
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		if calls.Add(1) < 3 {
			return Errf[string]("transient")
		}
		return Ok("done")
	})
	got, err := r.Unwrap()
	if err != nil || got != "done" {
		t.Errorf("retry = (%q, %v)", got, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestRetry_Exhausts(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Errf[int]("always")
	})
	if r.IsOk() {
		t.Error("expected exhausted retry to fail")
	}
}

func TestSliceHelpers(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(n int) int { return n * 2 })
	if doubled[2] != 6 {
		t.Errorf("Map = %v", doubled)
	}

	evens := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(evens) != 2 || evens[0] != 2 {
		t.Errorf("Filter = %v", evens)
	}

	batches := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(batches) != 3 || len(batches[2]) != 1 {
		t.Errorf("Chunk = %v", batches)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n=0 should be nil")
	}
}
