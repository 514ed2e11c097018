package require

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/alecthomas/assert"
	"github.com/pmezard/go-difflib/difflib"
)

// this is a subset of github.com/stretchr/testify/require
// on top of github.com/alecthomas/assert, only the functions we use.
// assert functions already call t.FailNow() on failure.

// TestingT is an interface wrapper around *testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}

// Len asserts that the specified object has specific length.
//
//	require.Len(t, mySlice, 3)
func Len(t TestingT, object interface{}, length int, msgAndArgs ...interface{}) {
	assert.Len(t, object, length, msgAndArgs...)
}

// Nil asserts that the specified object is nil.
func Nil(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	assert.Nil(t, object, msgAndArgs...)
}

// NotNil asserts that the specified object is not nil.
func NotNil(t TestingT, object interface{}, msgAndArgs ...interface{}) {
	assert.NotNil(t, object, msgAndArgs...)
}

// NoError asserts that a function returned no error (i.e. `nil`).
//
//	off, err := p.Append(d)
//	require.NoError(t, err)
func NoError(t TestingT, err error, msgAndArgs ...interface{}) {
	assert.NoError(t, err, msgAndArgs...)
}

// Error asserts that a function returned an error (i.e. not `nil`).
func Error(t TestingT, err error, msgAndArgs ...interface{}) {
	assert.Error(t, err, msgAndArgs...)
}

// ErrorIs asserts that errors.Is(err, target)
//
//	_, err := p.Append(big)
//	require.ErrorIs(t, err, pmemlog.ErrPoolFull)
func ErrorIs(t TestingT, err error, target error, msgAndArgs ...interface{}) {
	if errors.Is(err, target) {
		return
	}
	t.Errorf("expected error matching '%v', got '%v'%s", target, err, formatMsg(msgAndArgs))
	t.FailNow()
}

// Equal asserts that two objects are equal.
//
//	require.Equal(t, int64(3), p.Tail())
func Equal(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	assert.Equal(t, expected, actual, msgAndArgs...)
}

// NotEqual asserts that the specified values are NOT equal.
func NotEqual(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	assert.NotEqual(t, expected, actual, msgAndArgs...)
}

// True asserts that the specified value is true.
func True(t TestingT, value bool, msgAndArgs ...interface{}) {
	assert.True(t, value, msgAndArgs...)
}

// False asserts that the specified value is false.
func False(t TestingT, value bool, msgAndArgs ...interface{}) {
	assert.False(t, value, msgAndArgs...)
}

// BytesEqual asserts that two byte slices are equal. On mismatch it shows
// a line diff, which is much more readable than a hex dump for log data.
func BytesEqual(t TestingT, expected []byte, actual []byte, msgAndArgs ...interface{}) {
	if bytes.Equal(expected, actual) {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expected)),
		B:        difflib.SplitLines(string(actual)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	}
	s, err := difflib.GetUnifiedDiffString(diff)
	if err != nil || s == "" {
		// e.g. differ only in a missing trailing newline
		s = fmt.Sprintf("expected: %q\nactual:   %q\n", expected, actual)
	}
	t.Errorf("bytes not equal (len %d vs %d)%s\n%s", len(expected), len(actual), formatMsg(msgAndArgs), s)
	t.FailNow()
}

func formatMsg(msgAndArgs []interface{}) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	s, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprintf(": %v", msgAndArgs[0])
	}
	if len(msgAndArgs) > 1 {
		s = fmt.Sprintf(s, msgAndArgs[1:]...)
	}
	return ": " + s
}
