package version

import (
	"testing"

	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersionCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		stored        string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", current: "1.0.0", stored: "1.0.0"},
		{name: "patch differs", current: "1.0.3", stored: "1.0.0"},
		{name: "v prefix", current: "v1.2.0", stored: "1.2.7"},
		{name: "dev build current", current: "main", stored: "0.1.0"},
		{name: "dev build stored", current: "1.0.0", stored: "main"},
		{name: "minor differs", current: "1.1.0", stored: "1.0.0", expectError: true, errorContains: "minor version mismatch"},
		{name: "major differs", current: "2.0.0", stored: "1.0.0", expectError: true, errorContains: "major version mismatch"},
		{name: "invalid stored", current: "1.0.0", stored: "latest", expectError: true, errorContains: "invalid stored version"},
		{name: "invalid current", current: "x.y", stored: "1.0.0", expectError: true, errorContains: "invalid current version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersionCompatibility(tt.current, tt.stored)
			if !tt.expectError {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidVersion))
		})
	}
}

func TestCacheFormatVersionIsValid(t *testing.T) {
	assert.NoError(t, CheckVersionCompatibility(CacheFormatVersion, CacheFormatVersion))
	assert.NotEmpty(t, GetVersion())
}
