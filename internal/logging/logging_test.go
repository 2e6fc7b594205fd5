package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	type testCase struct {
		description string
		config      Config
		expectLevel logrus.Level
		expectErr   bool
	}
	testCases := []testCase{
		{description: "defaults", config: DefaultConfig(), expectLevel: logrus.InfoLevel},
		{description: "empty level", config: Config{Format: FormatJSON}, expectLevel: logrus.InfoLevel},
		{description: "debug", config: Config{Level: "debug"}, expectLevel: logrus.DebugLevel},
		{description: "bad level", config: Config{Level: "loud"}, expectErr: true},
		{description: "bad format", config: Config{Format: "xml"}, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			logger, err := New(tc.config)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectLevel, logger.GetLevel())
		})
	}
}

func TestNew_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "approval.log")
	logger, err := New(Config{Level: "info", Format: FormatJSON, File: file, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.WithField("instance", "wf-1").Info("instance started")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "wf-1", entry["instance"])
	assert.Equal(t, "instance started", entry["msg"])
}
