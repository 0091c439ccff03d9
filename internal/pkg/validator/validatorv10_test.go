package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobRequest struct {
	Queue    string   `json:"queue" validate:"required,queuename"`
	To       []string `json:"to" validate:"required,min=1,dive,email"`
	Subject  string   `json:"subject" validate:"required"`
	Internal string   `json:"-"`
}

func TestV10Validator_Validate(t *testing.T) {
	v, err := NewV10Validator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   jobRequest
		wantErr map[string]string
	}{
		{
			name:  "valid",
			input: jobRequest{Queue: "mail.outbound", To: []string{"a@example.com"}, Subject: "hi"},
		},
		{
			name:  "reserved queue prefix",
			input: jobRequest{Queue: "amq.direct", To: []string{"a@example.com"}, Subject: "hi"},
			wantErr: map[string]string{
				"queue": "queue must be a valid queue name",
			},
		},
		{
			name:  "bad recipient and missing subject",
			input: jobRequest{Queue: "mail", To: []string{"a@example.com", "nope"}},
			wantErr: map[string]string{
				"to[1]":   "to[1] must be a valid email address",
				"subject": "subject is a required field",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			var verr V10ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Values())
			assert.NotEmpty(t, verr.Error())
		})
	}
}

func TestV10ValidationError_Empty(t *testing.T) {
	assert.Equal(t, "validation error", V10ValidationError{}.Error())
}

func TestV10Validator_MailAddress(t *testing.T) {
	type message struct {
		From string   `json:"from" validate:"omitempty,mailaddr"`
		To   []string `json:"to" validate:"dive,mailaddr"`
	}

	v, err := NewV10Validator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(message{From: "Gomailer <noreply@example.com>", To: []string{"a@example.com"}}))

	err = v.Validate(message{To: []string{"ok@example.com", "broken <at>"}})

	var verr V10ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"to[1]": "to[1] must be a valid email address"}, verr.Values())
}
