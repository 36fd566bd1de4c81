package lbx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	fields := map[string]string{"hwid": "T042", "owner": "ACME", "empty": ""}

	tests := []struct {
		name    string
		pattern string
		want    string
		wantErr error
	}{
		{name: "plain text", pattern: "no placeholders", want: "no placeholders"},
		{name: "single field", pattern: "<id>{hwid}</id>", want: "<id>T042</id>"},
		{name: "repeated fields", pattern: "{hwid}-{owner}-{hwid}", want: "T042-ACME-T042"},
		{name: "empty value", pattern: "[{empty}]", want: "[]"},
		{name: "escaped braces", pattern: "{{hwid}} = {hwid}", want: "{hwid} = T042"},
		{name: "escaped closing brace", pattern: "a}}b", want: "a}b"},
		{name: "missing field", pattern: "{roof}", wantErr: ErrMissingField},
		{name: "unclosed brace", pattern: "{hwid", wantErr: ErrUnbalancedBrace},
		{name: "stray closing brace", pattern: "hwid}", wantErr: ErrUnbalancedBrace},
		{name: "positional placeholder", pattern: "{}", wantErr: ErrEmptyField},
		{name: "format spec", pattern: "{hwid:>8}", wantErr: ErrUnsupportedField},
		{name: "conversion", pattern: "{hwid!r}", wantErr: ErrUnsupportedField},
		{name: "attribute access", pattern: "{hwid.upper}", wantErr: ErrUnsupportedField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.pattern, fields)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_MissingFieldNamesKey(t *testing.T) {
	_, err := Format("{queue}", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"queue"`)
}
