package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_EmitsJSONWithServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSON("tracknow-api", &buf)

	l.Info("sale settled", map[string]interface{}{"sale_id": "abc"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "tracknow-api", entry["service"])
	assert.Equal(t, "sale settled", entry["message"])
	assert.Equal(t, "abc", entry["sale_id"])
}

func TestLogger_WithCarriesComponentFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSON("tracknow-api", &buf)

	child := l.With(map[string]interface{}{"component": "settlement"})
	child.Warn("rate cache read failed", map[string]interface{}{"key": "rate:x:y"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "settlement", entry["component"])
	assert.Equal(t, "rate:x:y", entry["key"])

	// Per-call fields win over inherited ones.
	buf.Reset()
	child.Info("override", map[string]interface{}{"component": "payout"})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "payout", entry["component"])
}

func TestNopLogger_WithReturnsSelf(t *testing.T) {
	l := NewNop()
	assert.Equal(t, l, l.With(map[string]interface{}{"component": "kyc"}))
}
