package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload JobPayload
		wantErr bool
	}{
		{
			name: "push with explicit tokens",
			payload: JobPayload{
				Type:    JobTypePush,
				Tokens:  []string{"tok-1"},
				Message: Message{Title: "t"},
			},
		},
		{
			name: "push targeted at a course resolves tokens later",
			payload: JobPayload{
				Type:       JobTypePush,
				CourseCode: "CS101",
				Message:    Message{Title: "t"},
			},
		},
		{
			name: "push with no targets",
			payload: JobPayload{
				Type:    JobTypePush,
				Message: Message{Title: "t"},
			},
			wantErr: true,
		},
		{
			name: "batch with no targets",
			payload: JobPayload{
				Type:    JobTypeBatch,
				Message: Message{Title: "t"},
			},
			wantErr: true,
		},
		{
			name: "telegram needs chat id",
			payload: JobPayload{
				Type:    JobTypeTelegram,
				Message: Message{Title: "t"},
			},
			wantErr: true,
		},
		{
			name: "telegram with chat id",
			payload: JobPayload{
				Type:    JobTypeTelegram,
				ChatID:  42,
				Message: Message{Title: "t"},
			},
		},
		{
			name: "missing type",
			payload: JobPayload{
				Tokens:  []string{"tok-1"},
				Message: Message{Title: "t"},
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			payload: JobPayload{
				Type:    "smoke-signal",
				Message: Message{Title: "t"},
			},
			wantErr: true,
		},
		{
			name: "empty message",
			payload: JobPayload{
				Type:   JobTypePush,
				Tokens: []string{"tok-1"},
			},
			wantErr: true,
		},
		{
			name: "body only message is enough",
			payload: JobPayload{
				Type:    JobTypePush,
				Tokens:  []string{"tok-1"},
				Message: Message{Body: "b"},
			},
		},
		{
			name: "unknown urgency",
			payload: JobPayload{
				Type:    JobTypePush,
				Tokens:  []string{"tok-1"},
				Message: Message{Title: "t"},
				Urgency: "asap",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidJobPayload)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateDefaultsUrgency(t *testing.T) {
	payload := JobPayload{
		Type:    JobTypePush,
		Tokens:  []string{"tok-1"},
		Message: Message{Title: "t"},
	}
	require.NoError(t, payload.Validate())
	require.Equal(t, UrgencyNormal, payload.Urgency)

	payload.Urgency = UrgencyUrgent
	require.NoError(t, payload.Validate())
	require.Equal(t, UrgencyUrgent, payload.Urgency)
}
