package geoid

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DowntownLA(t *testing.T) {
	g := Parse("060371976001008")

	assert.Equal(t, "06", g.State)
	assert.Equal(t, "037", g.County)
	assert.Equal(t, "197600", g.Tract)
	assert.Equal(t, "1008", g.Block)
	assert.Equal(t, "06037", g.CountyKey())
}

func TestParse_Reconstructs(t *testing.T) {
	ids := []string{
		"060371976001008",
		"191434601001000",
		"110010062021019",
		"000000000000000",
	}
	for _, id := range ids {
		g := Parse(id)
		assert.Len(t, g.State, 2)
		assert.Len(t, g.County, 3)
		assert.Len(t, g.Tract, 6)
		assert.Len(t, g.Block, 4)
		assert.Equal(t, id, g.String())
	}
}

func TestParse_ShortInput(t *testing.T) {
	tests := []struct {
		in   string
		want GEOID
	}{
		{"", GEOID{}},
		{"0", GEOID{State: "0"}},
		{"06037", GEOID{State: "06", County: "037"}},
		{"0603719760", GEOID{State: "06", County: "037", Tract: "19760"}},
		{"06037197600", GEOID{State: "06", County: "037", Tract: "197600"}},
		{"0603719760010", GEOID{State: "06", County: "037", Tract: "197600", Block: "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Parse(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestFields_Order(t *testing.T) {
	fields := Parse("060371976001008").Fields()
	require.Len(t, fields, 4)

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"state", "county", "tract", "block"}, names)
	assert.Equal(t, "1008", fields[3].Value)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("060371976001008"))

	err := Validate("06037197600100")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "length 14")

	err = Validate("06037197600100X")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "position 14")
}

func TestValidateAll(t *testing.T) {
	assert.NoError(t, ValidateAll([]string{"060371976001008", "191434601001000"}))
	assert.Error(t, ValidateAll([]string{"060371976001008", "bad"}))
	assert.NoError(t, ValidateAll(nil))
}

func TestCounties_Dedupes(t *testing.T) {
	counties := Counties([]string{"060371976001008", "060371976001009"})
	assert.Equal(t, []string{"06037"}, counties)
}

func TestCounties_OrderIndependent(t *testing.T) {
	a := Counties([]string{"191434601001000", "060371976001008", "191434601001001"})
	b := Counties([]string{"060371976001008", "191434601001001", "191434601001000"})

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"06037", "19143"}, a)
}

func TestCounties_Empty(t *testing.T) {
	assert.Empty(t, Counties(nil))
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"b", "a", "b", "c", "a"})
	assert.Equal(t, []string{"b", "a", "c"}, got)
}
