package log

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

func TestJSONHandlerRenamesBuiltins(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, CLIConfig{Level: log.LevelInfo, Format: FormatJSON})
	logger.Info("performing borrowTokens", "amount", big.NewInt(1_000_000_000_000_000))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, "info", out["lvl"])
	require.Contains(t, out, "t")
	require.Equal(t, "performing borrowTokens", out["msg"])
	require.Equal(t, "1000000000000000", out["amount"])
}

func TestLogfmtHandlerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, CLIConfig{Level: log.LevelWarn, Format: FormatLogFmt})
	logger.Info("hidden")
	logger.Warn("shown", "step", "reclaim")
	require.NotContains(t, buf.String(), "hidden")
	require.True(t, strings.Contains(buf.String(), "step=reclaim"))
}

func TestLogfmtHandlerPrintsStringers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, CLIConfig{Level: log.LevelInfo, Format: FormatLogFmt})
	var missing *big.Int
	lending := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	logger.Info("Calculated overdraft", "lending", lending, "amount", missing)

	out := buf.String()
	require.Contains(t, out, "lvl=info")
	require.Contains(t, out, "lending="+lending.Hex())
	require.Contains(t, out, "amount=<nil>")
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("DEBUG")
	require.NoError(t, err)
	require.Equal(t, log.LevelDebug, lvl)

	_, err = LevelFromString("loud")
	require.Error(t, err)
}

func TestCheckFormat(t *testing.T) {
	require.NoError(t, CLIConfig{Format: FormatTerminal}.Check())
	require.Error(t, CLIConfig{Format: "xml"}.Check())
}
