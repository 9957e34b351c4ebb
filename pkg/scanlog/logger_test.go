package scanlog

import (
	"strings"
	"testing"

	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerPersistsLevels(t *testing.T) {
	svc, ctx := newTestService(t)
	log := svc.NewLogger(ctx, "scan-abc", logger.New())

	log.Info("scan started", logger.Data{"roots": 2})
	log.Warn("file unreadable", logger.Data{"path": "/library/broken.epub"})
	log.Error("walk failed", errors.New("permission denied"), nil)

	logs, err := svc.ListScanLogs(ctx, ListScanLogsOptions{ScanID: "scan-abc"})
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Equal(t, models.ScanLogLevelInfo, logs[0].Level)
	assert.Equal(t, "scan started", logs[0].Message)
	require.NotNil(t, logs[0].Data)
	assert.Contains(t, *logs[0].Data, `"roots":2`)
	assert.Nil(t, logs[0].StackTrace)

	assert.Equal(t, models.ScanLogLevelWarn, logs[1].Level)
	require.NotNil(t, logs[1].Data)
	assert.Contains(t, *logs[1].Data, "broken.epub")

	assert.Equal(t, models.ScanLogLevelError, logs[2].Level)
	assert.Nil(t, logs[2].Data)
	require.NotNil(t, logs[2].StackTrace)
	assert.NotEmpty(t, *logs[2].StackTrace)
}

func TestLoggerTruncatesLongValues(t *testing.T) {
	svc, ctx := newTestService(t)
	log := svc.NewLogger(ctx, "scan-abc", logger.New())

	long := strings.Repeat("x", 5000)
	log.Info("big payload", logger.Data{"blob": long})

	logs, err := svc.ListScanLogs(ctx, ListScanLogsOptions{ScanID: "scan-abc"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Data)
	assert.Less(t, len(*logs[0].Data), 2000)
	assert.Contains(t, *logs[0].Data, " ... ")
}

func TestTruncateMiddle(t *testing.T) {
	assert.Equal(t, "short", truncateMiddle("short", 100))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	out := truncateMiddle(long, 25)
	assert.Len(t, out, 25)
	assert.True(t, strings.HasPrefix(out, "aaaa"))
	assert.True(t, strings.HasSuffix(out, "bbbb"))
	assert.Contains(t, out, " ... ")
}
