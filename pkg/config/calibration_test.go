// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCalibrationIsValid(t *testing.T) {
	require := require.New(t)

	cal := DefaultCalibration()
	require.NoError(cal.Validate())
	require.InDelta(1.0, cal.StatusCompleted+cal.StatusCancelled+cal.StatusRefunded, 1e-9)
	require.InDelta(1.0, cal.PayAlipay+cal.PayWeChat+cal.PayBankCard, 1e-9)
}

func TestLoadCalibrationOverridesDefaults(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "calibration.json")
	err := os.WriteFile(path, []byte(`{"paid_prob_promoted": 0.10, "min_paid_budget": 20}`), 0o644)
	require.NoError(err)

	cal, err := LoadCalibration(path)
	require.NoError(err)
	require.Equal(0.10, cal.PaidProbPromoted)
	require.Equal(20.0, cal.MinPaidBudget)

	// Untouched fields keep their defaults.
	require.Equal(0.02, cal.PaidProbDefault)
	require.Equal(3, cal.MaxQuantity)
}

func TestLoadCalibrationMissingFile(t *testing.T) {
	require := require.New(t)

	_, err := LoadCalibration(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	require := require.New(t)

	cal := DefaultCalibration()
	cal.PaidProbPromoted = 1.5
	require.Error(cal.Validate())

	cal = DefaultCalibration()
	cal.NaturalCTR = Range{0.2, 0.1}
	require.Error(cal.Validate())

	cal = DefaultCalibration()
	cal.StatusCompleted, cal.StatusCancelled, cal.StatusRefunded = 0, 0, 0
	require.Error(cal.Validate())

	cal = DefaultCalibration()
	cal.MaxQuantity = 0
	require.Error(cal.Validate())
}
