package expression

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupelink/dupelink/pkg/fileindex"
)

func TestCheckRecordSingleMatch(t *testing.T) {
	rec := fileindex.Record{
		Path:    "/data/photos/IMG_0001.JPG",
		Name:    "IMG_0001.JPG",
		Size:    2 << 20,
		ModTime: time.Now().Add(-2 * time.Hour),
		Links:   1,
	}

	tests := []struct {
		name        string
		expressions []string
		want        bool
		wantReason  string
	}{
		{name: "name", expressions: []string{`Name == ".DS_Store"`}, want: false},
		{name: "extension", expressions: []string{`Ext == "nfo"`, `Ext == "jpg"`}, want: true, wantReason: `Ext == "jpg"`},
		{name: "size", expressions: []string{`Size < Bytes("1MiB")`}, want: false},
		{name: "size_match", expressions: []string{`Size >= Bytes("2 MiB")`}, want: true, wantReason: `Size >= Bytes("2 MiB")`},
		{name: "dir", expressions: []string{`Dir endsWith "/photos"`}, want: true, wantReason: `Dir endsWith "/photos"`},
		{name: "age", expressions: []string{`Age < 60`}, want: false},
		{name: "regex", expressions: []string{`RegexMatch(Name, "^IMG_(?=\\d{4})")`}, want: true, wantReason: `RegexMatch(Name, "^IMG_(?=\\d{4})")`},
		{name: "invalid_regex", expressions: []string{`RegexMatch(Name, "(")`}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := Compile(tt.expressions)
			require.NoError(t, err)

			got, reason, err := CheckRecordSingleMatchWithReason(context.Background(), rec, compiled)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []string{
		`Size +`,
		`Unknown == 1`,
		`Size`,
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Compile([]string{text})
			assert.Error(t, err)
		})
	}
}

func TestExcluder(t *testing.T) {
	assert.Nil(t, Excluder(context.Background(), nil))

	compiled, err := Compile([]string{`Name == ".DS_Store"`, `Name startsWith "._"`})
	require.NoError(t, err)

	exclude := Excluder(context.Background(), compiled)
	assert.True(t, exclude(fileindex.Record{Name: ".DS_Store"}))
	assert.True(t, exclude(fileindex.Record{Name: "._resource"}))
	assert.False(t, exclude(fileindex.Record{Name: "keep.txt"}))
}
