package goerror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_StatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code Code
	}{
		{name: "server", err: NewServer(errors.New("db down")), want: http.StatusInternalServerError, code: CodeInternal},
		{name: "upstream", err: NewUpstream(errors.New("550"), "provider rejected"), want: http.StatusBadGateway, code: CodeUpstream},
		{name: "unavailable", err: NewUnavailable(errors.New("dial"), "broker down"), want: http.StatusServiceUnavailable, code: CodeUnavailable},
		{name: "not acceptable", err: NewNotAcceptable("null delivery"), want: http.StatusNotAcceptable, code: CodeNotAcceptable},
		{name: "business not found", err: NewBusiness("job not found", CodeNotFound), want: http.StatusNotFound, code: CodeNotFound},
		{name: "invalid format", err: NewInvalidFormat(), want: http.StatusBadRequest, code: CodeInvalidFormat},
		{name: "invalid input", err: NewInvalidInput(nil, "to", "required"), want: http.StatusUnprocessableEntity, code: CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ge *Error
			assert.ErrorAs(t, tt.err, &ge)
			assert.Equal(t, tt.want, ge.StatusCode())
			assert.Equal(t, tt.code, CodeOf(tt.err))
		})
	}
}

func TestError_Messages(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewUpstream(cause, "provider rejected")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "dial tcp: timeout", err.Error())

	var ge *Error
	assert.ErrorAs(t, err, &ge)
	assert.Equal(t, "provider rejected", ge.Msg())
	assert.Equal(t, TypeServer, ge.Type())
	assert.Contains(t, ge.String(), "ERROR_CODE_UPSTREAM")
}

func TestNewInvalidInput(t *testing.T) {
	err := NewInvalidInput(nil, "to", "to is required", "subject", "subject is required")

	var ge *Error
	assert.ErrorAs(t, err, &ge)
	assert.Equal(t, map[string]string{"to": "to is required", "subject": "subject is required"}, ge.Fields())

	odd := NewInvalidInput(nil, "to")
	assert.Equal(t, CodeInvalidFormat, CodeOf(odd))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, "ERROR_CODE_INTERNAL", Code(99).String())
}
