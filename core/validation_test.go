package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScreenshot() *Screenshot {
	return &Screenshot{
		Owner:      "user-1",
		ImageURL:   "/objects/user-1/abc.png",
		Width:      800,
		Height:     600,
		CapturedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestValidateScreenshot(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Screenshot)
		wantErr error
	}{
		{
			name:   "valid screenshot",
			mutate: func(s *Screenshot) {},
		},
		{
			name:    "empty owner",
			mutate:  func(s *Screenshot) { s.Owner = "  " },
			wantErr: ErrEmptyOwner,
		},
		{
			name:    "empty image url",
			mutate:  func(s *Screenshot) { s.ImageURL = "" },
			wantErr: ErrEmptyImageURL,
		},
		{
			name:    "zero width",
			mutate:  func(s *Screenshot) { s.Width = 0 },
			wantErr: ErrInvalidDimensions,
		},
		{
			name:    "negative height",
			mutate:  func(s *Screenshot) { s.Height = -1 },
			wantErr: ErrInvalidDimensions,
		},
		{
			name:    "zero timestamp",
			mutate:  func(s *Screenshot) { s.CapturedAt = time.Time{} },
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "far future timestamp",
			mutate:  func(s *Screenshot) { s.CapturedAt = time.Now().Add(time.Hour) },
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:   "slightly ahead timestamp is tolerated",
			mutate: func(s *Screenshot) { s.CapturedAt = time.Now().Add(time.Minute) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScreenshot()
			tt.mutate(s)
			err := ValidateScreenshot(s)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidScreenshot))
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestValidateScreenshot_Nil(t *testing.T) {
	err := ValidateScreenshot(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScreenshot)
}

func TestNormalizeTags(t *testing.T) {
	assert.Nil(t, NormalizeTags(nil))
	assert.Equal(t, []string{}, NormalizeTags([]string{" ", ""}))
	assert.Equal(t, []string{"diagram", "v2"}, NormalizeTags([]string{"diagram", " v2", "diagram "}))
}
