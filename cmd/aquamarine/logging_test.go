package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLevelCmd(t *testing.T, level string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("log-level", "", "")
	if level != "" {
		require.NoError(t, cmd.Flags().Set("log-level", level))
	}
	return cmd
}

func TestConfigureLoggerLevels(t *testing.T) {
	tests := []struct {
		flag string
		want logrus.Level
	}{
		{"", logrus.PanicLevel},
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run("level "+tt.flag, func(t *testing.T) {
			logger, err := configureLogger(newLevelCmd(t, tt.flag))
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
		})
	}
}

func TestConfigureLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := configureLogger(newLevelCmd(t, "trace"))
	assert.Error(t, err)
}
