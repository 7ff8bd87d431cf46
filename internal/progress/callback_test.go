package progress

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallDetailed_NilCallback(t *testing.T) {
	// Should not panic when callback is nil
	assert.NotPanics(t, func() {
		CallDetailed(nil, Update{Phase: "scanning"})
	})
}

func TestCallDetailed_InvokesCallback(t *testing.T) {
	var captured Update
	CallDetailed(func(u Update) { captured = u }, Update{
		Phase:   "checkpoint",
		Current: big.NewInt(25),
		Total:   big.NewInt(100),
		Details: map[string]any{"blocks_remaining": 3},
	})

	assert.Equal(t, "checkpoint", captured.Phase)
	assert.Equal(t, 3, captured.Details["blocks_remaining"])
	assert.InDelta(t, 25.0, captured.Percent(), 1e-9)
}

func TestUpdate_PercentUnknownTotal(t *testing.T) {
	assert.Zero(t, Update{}.Percent())
	assert.Zero(t, Update{Current: big.NewInt(1), Total: big.NewInt(0)}.Percent())
}
