package mapbatch

import (
	"errors"
	"testing"
)

func TestStatusOk(t *testing.T) {
	var s Status
	if !s.Ok() {
		t.Fatalf("zero Status should be Ok")
	}
	if got, want := s.Error(), "OK"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestFromError(t *testing.T) {
	if s := FromError(nil); !s.Ok() {
		t.Fatalf("FromError(nil) should be Ok, got %v", s)
	}
	s := FromError(errors.New("boom"))
	if s.Ok() {
		t.Fatalf("FromError(err) should not be Ok")
	}
	if s.Code != Unknown {
		t.Fatalf("FromError code = %v, want Unknown", s.Code)
	}
}

func TestMergeStatusFirstErrorWins(t *testing.T) {
	dst := Status{}
	first := InvalidArgumentf("first: %d", 1)
	second := InvalidArgumentf("second: %d", 2)

	mergeStatus(&dst, first)
	mergeStatus(&dst, second)
	mergeStatus(&dst, Status{})

	if dst.Err == nil || dst.Err.Error() != "first: 1" {
		t.Fatalf("mergeStatus should keep first error, got %v", dst)
	}
}

func TestInvalidArgumentf(t *testing.T) {
	s := InvalidArgumentf("bad value %d", 7)
	if s.Ok() {
		t.Fatalf("InvalidArgumentf should not be Ok")
	}
	if s.Code != InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", s.Code)
	}
	want := "InvalidArgument: bad value 7"
	if got := s.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
