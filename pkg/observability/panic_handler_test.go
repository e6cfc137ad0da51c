package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "cache sweep")
		panic("boom")
	})
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "cache sweep")
	assert.Contains(t, buf.String(), "boom")
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var got interface{}
	func() {
		defer RecoverPanicWithCallback(nil, "handler", func(r interface{}) { got = r })
		panic("bad")
	}()
	assert.Equal(t, "bad", got)

	called := false
	func() {
		defer RecoverPanicWithCallback(nil, "handler", func(interface{}) { called = true })
	}()
	assert.False(t, called)
}

func TestPanicError(t *testing.T) {
	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("oops"), "panic: oops")

	cause := errors.New("nil map")
	assert.ErrorIs(t, PanicError(cause), cause)
}
