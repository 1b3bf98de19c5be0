package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pledge-service/internal/model"
)

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    model.Date
		wantErr bool
	}{
		{
			name:  "plain date",
			input: "2024-01-15",
			want:  model.NewDate(2024, time.January, 15),
		},
		{
			name:  "leap day",
			input: "2024-02-29",
			want:  model.NewDate(2024, time.February, 29),
		},
		{
			name:    "non-existent day",
			input:   "2023-02-29",
			wantErr: true,
		},
		{
			name:    "wrong layout",
			input:   "01/15/2024",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute(t *testing.T) {
	today := model.NewDate(2024, time.January, 1)

	tests := []struct {
		name         string
		start        string
		fiscalEnd    string
		monthly      string
		installments int
		last         string
		total        string
	}{
		{
			name:         "start of fiscal half",
			start:        "2024-01-01",
			fiscalEnd:    "2024-06-30",
			monthly:      "100",
			installments: 6,
			last:         "2024-06-01",
			total:        "600",
		},
		{
			name:         "start after fiscal end clamps to one",
			start:        "2024-07-01",
			fiscalEnd:    "2024-06-30",
			monthly:      "75",
			installments: 1,
			last:         "2024-07-01",
			total:        "75",
		},
		{
			name:         "start years after fiscal end clamps to one",
			start:        "2027-03-10",
			fiscalEnd:    "2024-06-30",
			monthly:      "20",
			installments: 1,
			last:         "2027-03-10",
			total:        "20",
		},
		{
			name:         "same month as fiscal end",
			start:        "2024-06-15",
			fiscalEnd:    "2024-06-30",
			monthly:      "10",
			installments: 1,
			last:         "2024-06-15",
			total:        "10",
		},
		{
			name:         "one month before fiscal end",
			start:        "2024-05-30",
			fiscalEnd:    "2024-06-30",
			monthly:      "10",
			installments: 2,
			last:         "2024-06-30",
			total:        "20",
		},
		{
			name:         "crosses calendar year",
			start:        "2023-11-05",
			fiscalEnd:    "2024-06-30",
			monthly:      "25",
			installments: 8,
			last:         "2024-06-05",
			total:        "200",
		},
		{
			name:         "fractional amount rounds half up",
			start:        "2024-01-15",
			fiscalEnd:    "2024-03-31",
			monthly:      "10.50",
			installments: 3,
			last:         "2024-03-15",
			total:        "32",
		},
		{
			name:         "fractional amount rounds down",
			start:        "2024-03-01",
			fiscalEnd:    "2024-06-30",
			monthly:      "50.10",
			installments: 4,
			last:         "2024-06-01",
			total:        "200",
		},
		{
			name:         "month end clamps in february",
			start:        "2024-01-31",
			fiscalEnd:    "2024-02-29",
			monthly:      "5",
			installments: 2,
			last:         "2024-02-29",
			total:        "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(
				mustDate(t, tt.start),
				decimal.RequireFromString(tt.monthly),
				mustDate(t, tt.fiscalEnd),
				today,
			)

			assert.Equal(t, tt.installments, s.Installments)
			assert.Equal(t, tt.last, s.LastInstallment.String())
			assert.True(t, decimal.RequireFromString(tt.total).Equal(s.TotalPledge), "total = %s, want %s", s.TotalPledge, tt.total)
			assert.GreaterOrEqual(t, s.Installments, 1)
		})
	}
}

func TestCompute_TotalForFourInstallments(t *testing.T) {
	s := Compute(
		model.NewDate(2024, time.March, 1),
		decimal.RequireFromString("50.00"),
		model.NewDate(2024, time.June, 30),
		model.NewDate(2024, time.January, 1),
	)

	require.Equal(t, 4, s.Installments)
	assert.Equal(t, "200", s.TotalPledge.String())
}

func TestCompute_ImmediateStart(t *testing.T) {
	today := model.NewDate(2024, time.March, 10)
	fiscalEnd := model.NewDate(2024, time.June, 30)
	monthly := decimal.NewFromInt(10)

	assert.True(t, Compute(today, monthly, fiscalEnd, today).ImmediateStart, "start today")
	assert.True(t, Compute(model.NewDate(2024, time.March, 9), monthly, fiscalEnd, today).ImmediateStart, "start yesterday")
	assert.False(t, Compute(model.NewDate(2024, time.March, 11), monthly, fiscalEnd, today).ImmediateStart, "start tomorrow")
}

func TestCompute_Deterministic(t *testing.T) {
	start := model.NewDate(2024, time.February, 29)
	fiscalEnd := model.NewDate(2025, time.June, 30)
	today := model.NewDate(2024, time.February, 1)
	monthly := decimal.RequireFromString("33.33")

	assert.Equal(t, Compute(start, monthly, fiscalEnd, today), Compute(start, monthly, fiscalEnd, today))
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name  string
		start model.Date
		n     int
		want  model.Date
	}{
		{
			name:  "zero months",
			start: model.NewDate(2024, time.January, 15),
			n:     0,
			want:  model.NewDate(2024, time.January, 15),
		},
		{
			name:  "two months keeps day",
			start: model.NewDate(2024, time.January, 15),
			n:     2,
			want:  model.NewDate(2024, time.March, 15),
		},
		{
			name:  "31st to leap february",
			start: model.NewDate(2024, time.January, 31),
			n:     1,
			want:  model.NewDate(2024, time.February, 29),
		},
		{
			name:  "31st to common february",
			start: model.NewDate(2025, time.January, 31),
			n:     1,
			want:  model.NewDate(2025, time.February, 28),
		},
		{
			name:  "31st to april",
			start: model.NewDate(2024, time.March, 31),
			n:     1,
			want:  model.NewDate(2024, time.April, 30),
		},
		{
			name:  "cross year",
			start: model.NewDate(2024, time.December, 31),
			n:     2,
			want:  model.NewDate(2025, time.February, 28),
		},
		{
			name:  "twelve months",
			start: model.NewDate(2024, time.July, 1),
			n:     12,
			want:  model.NewDate(2025, time.July, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.start, tt.n))
		})
	}
}
