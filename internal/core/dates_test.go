package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		token string
		want  time.Time
		ok    bool
	}{
		// Zero-padded forms
		{"2025-08-20", ymd(2025, 8, 20), true},
		{"2025/08/20", ymd(2025, 8, 20), true},
		{"2025.08.20", ymd(2025, 8, 20), true},
		{"20250820", ymd(2025, 8, 20), true},
		{"20-08-2025", ymd(2025, 8, 20), true},
		{"20/08/2025", ymd(2025, 8, 20), true},
		{"20.08.2025", ymd(2025, 8, 20), true},

		// Month-first only when day-first is impossible
		{"08-20-2025", ymd(2025, 8, 20), true},
		{"08/20/2025", ymd(2025, 8, 20), true},
		{"08.20.2025", ymd(2025, 8, 20), true},

		// Ambiguous tokens resolve day-first
		{"08-09-2025", ymd(2025, 9, 8), true},
		{"01/02/2025", ymd(2025, 2, 1), true},

		// Unpadded forms
		{"2025/1/5", ymd(2025, 1, 5), true},
		{"2025-1-6", ymd(2025, 1, 6), true},
		{"2025.1.7", ymd(2025, 1, 7), true},
		{"5/1/2025", ymd(2025, 1, 5), true},
		{"5-1-2025", ymd(2025, 1, 5), true},
		{"5.1.2025", ymd(2025, 1, 5), true},

		// Surrounding whitespace
		{"  2025-08-20\t", ymd(2025, 8, 20), true},

		// Calendar validity
		{"2025-13-01", time.Time{}, false},
		{"2025-02-30", time.Time{}, false},
		{"2025/2/30", time.Time{}, false},
		{"2024-02-29", ymd(2024, 2, 29), true},
		{"2025-02-29", time.Time{}, false},
		{"31/4/2025", time.Time{}, false},
		{"0/1/2025", time.Time{}, false},

		// There is no year 0
		{"0000-01-01", time.Time{}, false},
		{"00000101", time.Time{}, false},
		{"01/01/0000", time.Time{}, false},
		{"0000/1/1", time.Time{}, false},
		{"1.1.0000", time.Time{}, false},
		{"0001-01-01", ymd(1, 1, 1), true},
		{"1/1/0001", ymd(1, 1, 1), true},

		// Not dates
		{"", time.Time{}, false},
		{"   ", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"2025-08", time.Time{}, false},
		{"2025-08-20T10:00:00", time.Time{}, false},
		{"2025/08-20", time.Time{}, false},
		{"250820", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseDate(tt.token)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestParseDateWith(t *testing.T) {
	tests := []struct {
		layout string
		token  string
		want   time.Time
		ok     bool
	}{
		{"YMD", "20250820", ymd(2025, 8, 20), true},
		{"YMD", "2025-08-20", time.Time{}, false},
		{"D/M/Y", "08/09/2025", ymd(2025, 9, 8), true},
		{"M/D/Y", "08/09/2025", ymd(2025, 8, 9), true},
		{"M/D/Y", "20/08/2025", time.Time{}, false},
		{"YYYY/M/D", "2025/1/5", ymd(2025, 1, 5), true},
		{"D.M.YYYY", "5.1.2025", ymd(2025, 1, 5), true},
		{"no-such-layout", "2025-08-20", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.layout+"/"+tt.token, func(t *testing.T) {
			got, ok := ParseDateWith(tt.layout, tt.token)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestDateLayoutPrecedence(t *testing.T) {
	names := DateLayoutNames()
	require.Len(t, names, len(dateLayouts))

	index := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		t.Fatalf("layout %q missing", name)
		return -1
	}

	assert.Less(t, index("Y-M-D"), index("D-M-Y"))
	assert.Less(t, index("D-M-Y"), index("M-D-Y"))
	assert.Less(t, index("D/M/Y"), index("M/D/Y"))
	assert.Less(t, index("YYYY/M/D"), index("D/M/YYYY"))
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	got := dateOnly(time.Date(2025, 8, 20, 23, 30, 0, 0, loc))
	assert.Equal(t, ymd(2025, 8, 20), got)
}
