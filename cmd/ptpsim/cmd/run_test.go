/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, 128.0, cfg.SyncRate)
	require.Equal(t, 125e6, cfg.NominalRTCClk)
}

func TestLoadConfigOverride(t *testing.T) {
	content := `
sync_rate: 64
slave:
  freq_offset_ppb: 400
queueing_mean: 0.00001
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	// overridden
	require.Equal(t, 64.0, cfg.SyncRate)
	require.Equal(t, 400.0, cfg.Slave.FreqOffsetPPB)
	require.InDelta(t, 1e-5, cfg.QueueingMean, 1e-12)
	// untouched defaults survive
	require.Equal(t, 8.0, cfg.PdelayReqRate)
	require.Equal(t, 2, cfg.ErlangK)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig("/nonexistent/config.yaml")
	require.Error(t, err)
}
