package dsl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/feedrank/core"
)

func TestProgram_Match(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &core.Contract{
		ID:          "c1",
		OutcomeType: core.OutcomeTypeBinary,
		CloseTime:   now.Add(2 * time.Hour),
		GroupIDs:    []string{"politics"},
		ViewCount:   12,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`contract.view_count >= 10`, true},
		{`contract.view_count >= 100`, false},
		{`contract.close_time - now > 3600000`, true},
		{`!("test" in contract.group_ids)`, true},
		{`"politics" in contract.group_ids && contract.outcome_type == "BINARY"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := p.Match(c, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Cached(t *testing.T) {
	a, err := Compile(`contract.view_count > 0`)
	require.NoError(t, err)
	b, err := Compile(`contract.view_count > 0`)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, `contract.view_count > 0`, a.String())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(`contract.view_count > 0`, `true`))
	assert.Error(t, Validate(`contract.view_count >`))
	assert.Error(t, Validate(`1 + 1`))
}

func TestProgram_MatchUnknownField(t *testing.T) {
	p, err := Compile(`contract.missing == 1`)
	require.NoError(t, err)
	_, err = p.Match(&core.Contract{}, time.Now())
	assert.Error(t, err)
}
