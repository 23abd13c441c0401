package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "rentalsd", "test", slog.LevelInfo)
	Component(logger, "rentals").Info("settled",
		MaskField("signature", "0xdeadbeef"),
		slog.String("lessor", "0x01"),
		slog.String("passphrase", "hunter2"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "settled", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "rentalsd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "rentals", line["component"])
	require.Equal(t, RedactedValue, line["signature"])
	require.Equal(t, "0x01", line["lessor"])
	require.Equal(t, RedactedValue, line["passphrase"])
	require.Contains(t, line, "timestamp")
}

func TestMaskHelpers(t *testing.T) {
	require.Equal(t, "  ", MaskValue("  "))
	require.Equal(t, RedactedValue, MaskValue("secret"))
	require.True(t, IsSensitive(" Passphrase "))
	require.False(t, IsSensitive("tenant"))
	require.Equal(t, "", MaskField("owner", "").Value.String())
	require.Equal(t, "0x12345678..cdef0123", ShortHex("0x1234567890abcdef1234567890abcdef0123"))
	require.Equal(t, "0x1234", ShortHex("0x1234"))
}
