package server

import (
	errs "chat-relay/errors"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeErrorPayload(t *testing.T, env Envelope) errorPayload {
	t.Helper()
	require.Equal(t, eventError, env.Event)
	var payload errorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

func Test_Error_Envelope_Keeps_Validation_Detail(t *testing.T) {
	req := require.New(t)

	payload := decodeErrorPayload(t, errorEnvelope(errs.Validation("body is required")))
	req.Equal("VALIDATION", payload.Code)
	req.Contains(payload.Message, "body is required")
}

func Test_Error_Envelope_Redacts_Persistence_Detail(t *testing.T) {
	req := require.New(t)
	wrapped := fmt.Errorf("%w: %v", errs.ErrPersistence, fmt.Errorf("Writes are blocked, possibly due to DropAll or Close"))

	payload := decodeErrorPayload(t, errorEnvelope(wrapped))
	req.Equal("PERSISTENCE", payload.Code)
	req.NotContains(payload.Message, "DropAll")
	req.Equal("operation could not be persisted", payload.Message)
}

func Test_Error_Envelope_Redacts_Internal_Detail(t *testing.T) {
	req := require.New(t)

	payload := decodeErrorPayload(t, errorEnvelope(fmt.Errorf("dial tcp 10.0.0.1: connection refused")))
	req.Equal("INTERNAL", payload.Code)
	req.Equal("internal error", payload.Message)
}
