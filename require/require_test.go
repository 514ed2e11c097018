package require

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

type fakeT struct {
	msgs   []string
	failed bool
}

func (t *fakeT) Errorf(format string, args ...interface{}) {
	t.msgs = append(t.msgs, fmt.Sprintf(format, args...))
}

func (t *fakeT) FailNow() {
	t.failed = true
}

func TestBytesEqualDiff(t *testing.T) {
	ft := &fakeT{}
	BytesEqual(ft, []byte("a\nb\nc\n"), []byte("a\nb\nc\n"))
	if ft.failed {
		t.Fatalf("equal slices reported as different")
	}

	BytesEqual(ft, []byte("record 1\nrecord 2\n"), []byte("record 1\nrecord 3\n"), "pool %s", "foo")
	if !ft.failed || len(ft.msgs) != 1 {
		t.Fatalf("expected one failure, got %v", ft.msgs)
	}
	msg := ft.msgs[0]
	for _, s := range []string{": pool foo", "-record 2", "+record 3", "--- expected", "+++ actual"} {
		if !strings.Contains(msg, s) {
			t.Errorf("'%s' not in:\n%s", s, msg)
		}
	}
}

func TestBytesEqualNoNewline(t *testing.T) {
	ft := &fakeT{}
	BytesEqual(ft, []byte("abc"), []byte("abd"))
	if !ft.failed {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(ft.msgs[0], "len 3 vs 3") {
		t.Errorf("unexpected message: %s", ft.msgs[0])
	}
}

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("open pool: %w", fs.ErrNotExist)
	ft := &fakeT{}
	ErrorIs(ft, wrapped, fs.ErrNotExist)
	if ft.failed {
		t.Fatalf("wrapped error not matched")
	}
	ErrorIs(ft, errors.New("other"), fs.ErrNotExist, "attempt %d", 2)
	if !ft.failed {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(ft.msgs[0], "attempt 2") {
		t.Errorf("unexpected message: %s", ft.msgs[0])
	}
	ft = &fakeT{}
	ErrorIs(ft, nil, fs.ErrNotExist)
	if !ft.failed {
		t.Fatalf("nil error matched")
	}
}

func TestPassThrough(t *testing.T) {
	Equal(t, 3, 1+2)
	NotEqual(t, "a", "b")
	True(t, true)
	False(t, false)
	Nil(t, nil)
	NotNil(t, t)
	NoError(t, nil)
	Error(t, errors.New("x"))
	Len(t, []int{1, 2}, 2)
}

func TestFailureStops(t *testing.T) {
	checks := map[string]func(TestingT){
		"Equal":    func(ft TestingT) { Equal(ft, int64(3), int64(4), "tail") },
		"NotEqual": func(ft TestingT) { NotEqual(ft, "a", "a") },
		"True":     func(ft TestingT) { True(ft, false) },
		"False":    func(ft TestingT) { False(ft, true) },
		"Nil":      func(ft TestingT) { Nil(ft, errors.New("x")) },
		"NotNil":   func(ft TestingT) { NotNil(ft, nil) },
		"NoError":  func(ft TestingT) { NoError(ft, errors.New("pool full")) },
		"Error":    func(ft TestingT) { Error(ft, nil) },
		"Len":      func(ft TestingT) { Len(ft, []int{1}, 2) },
	}
	for name, check := range checks {
		ft := &fakeT{}
		check(ft)
		if !ft.failed {
			t.Errorf("%s: FailNow() not called", name)
		}
		if len(ft.msgs) == 0 {
			t.Errorf("%s: no error message", name)
		}
	}
}
