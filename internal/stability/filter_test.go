package stability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signbridge/internal/classifier"
)

func newFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(DefaultConfig())
	require.NoError(t, err)
	return f
}

func rec(label string, confidence float64) classifier.Record {
	return classifier.Record{Label: label, Confidence: confidence}
}

func TestFilter_CommitsAfterFullHistory(t *testing.T) {
	f := newFilter(t)

	for i := 1; i < DefaultHistory; i++ {
		res, err := f.Update(rec("A", 0.95))
		require.NoError(t, err)
		assert.False(t, res.State.Stable, "update %d must not commit", i)
		assert.False(t, res.Changed)
	}

	res, err := f.Update(rec("A", 0.95))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, State{Label: "A", Confidence: 0.95, Stable: true}, res.State)
	assert.Equal(t, State{}, res.Previous)
}

func TestFilter_LowConfidenceDoesNotAdvanceHistory(t *testing.T) {
	f := newFilter(t)

	for i := 0; i < 4; i++ {
		_, err := f.Update(rec("A", 0.95))
		require.NoError(t, err)
	}

	res, err := f.Update(rec("A", 0.5))
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Len(t, f.History(), 4)

	for i := 0; i < 5; i++ {
		res, err = f.Update(rec("A", 0.95))
		require.NoError(t, err)
		assert.False(t, res.State.Stable)
	}

	res, err = f.Update(rec("A", 0.95))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "A", res.State.Label)
}

func TestFilter_LowConfidenceNeverChangesState(t *testing.T) {
	f := newFilter(t)
	for i := 0; i < DefaultHistory; i++ {
		_, err := f.Update(rec("A", 0.9))
		require.NoError(t, err)
	}
	before := f.State()

	res, err := f.Update(rec("B", 0.79))
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, before, res.State)
	assert.Equal(t, before, f.State())
}

func TestFilter_TieGoesToEarliestLabel(t *testing.T) {
	f := newFilter(t)
	labels := []string{"A", "A", "A", "A", "A", "B", "B", "B", "B", "B"}

	var res Result
	var err error
	for _, l := range labels {
		res, err = f.Update(rec(l, 0.9))
		require.NoError(t, err)
	}

	assert.True(t, res.Changed)
	assert.Equal(t, "A", res.State.Label)
}

func TestFilter_MajorityWins(t *testing.T) {
	f := newFilter(t)
	labels := []string{"B", "A", "A", "C", "A", "B", "A", "C", "A", "B"}

	var res Result
	var err error
	for _, l := range labels {
		res, err = f.Update(rec(l, 0.9))
		require.NoError(t, err)
	}

	assert.Equal(t, "A", res.State.Label)
}

func TestFilter_TransitionsWhenMajorityShifts(t *testing.T) {
	f := newFilter(t)
	for i := 0; i < DefaultHistory; i++ {
		_, err := f.Update(rec("A", 0.9))
		require.NoError(t, err)
	}

	var changes []string
	for i := 0; i < DefaultHistory; i++ {
		res, err := f.Update(rec("B", 0.85))
		require.NoError(t, err)
		if res.Changed {
			changes = append(changes, res.Previous.Label+"->"+res.State.Label)
		}
	}

	// 5 A / 5 B keeps A (oldest first occurrence); 4 A / 6 B flips.
	assert.Equal(t, []string{"A->B"}, changes)
	assert.Equal(t, State{Label: "B", Confidence: 0.85, Stable: true}, f.State())
}

func TestFilter_RefreshConfidence(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		f := newFilter(t)
		for i := 0; i < DefaultHistory; i++ {
			_, err := f.Update(rec("A", 0.9))
			require.NoError(t, err)
		}
		res, err := f.Update(rec("A", 0.97))
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, 0.97, res.State.Confidence)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RefreshConfidence = false
		f, err := NewFilter(cfg)
		require.NoError(t, err)
		for i := 0; i < DefaultHistory; i++ {
			_, err := f.Update(rec("A", 0.9))
			require.NoError(t, err)
		}
		res, err := f.Update(rec("A", 0.97))
		require.NoError(t, err)
		assert.Equal(t, 0.9, res.State.Confidence)
	})
}

func TestFilter_Deterministic(t *testing.T) {
	seq := []classifier.Record{
		rec("A", 0.9), rec("B", 0.85), rec("A", 0.5), rec("B", 0.95), rec("C", 0.81),
		rec("A", 0.99), rec("B", 0.9), rec("B", 0.9), rec("A", 0.88), rec("C", 0.2),
		rec("A", 0.9), rec("B", 0.9), rec("A", 0.92), rec("B", 0.93), rec("C", 0.94),
		rec("C", 0.9), rec("C", 0.9), rec("C", 0.9), rec("A", 0.9), rec("B", 0.9),
	}

	run := func() []State {
		f := newFilter(t)
		out := make([]State, 0, len(seq))
		for _, r := range seq {
			res, err := f.Update(r)
			require.NoError(t, err)
			out = append(out, res.State)
		}
		return out
	}

	first := run()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, run())
	}
}

func TestFilter_InvalidRecord(t *testing.T) {
	f := newFilter(t)
	for i := 0; i < 3; i++ {
		_, err := f.Update(rec("A", 0.9))
		require.NoError(t, err)
	}

	for _, bad := range []classifier.Record{
		rec("A", 1.5),
		rec("A", -0.1),
		rec("A", math.NaN()),
		rec("", 0.9),
	} {
		_, err := f.Update(bad)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	}

	assert.Equal(t, []string{"A", "A", "A"}, f.History())
	assert.Equal(t, State{}, f.State())
}

func TestFilter_HistoryIsBounded(t *testing.T) {
	f := newFilter(t)
	for i := 0; i < 3*DefaultHistory; i++ {
		_, err := f.Update(rec(string(rune('A'+i%3)), 0.9))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(f.History()), DefaultHistory)
	}
	assert.Len(t, f.History(), DefaultHistory)
}

func TestFilter_SetThreshold(t *testing.T) {
	f := newFilter(t)

	require.NoError(t, f.SetThreshold(0.5))
	assert.Equal(t, 0.5, f.Threshold())

	res, err := f.Update(rec("A", 0.6))
	require.NoError(t, err)
	assert.False(t, res.Rejected)

	for _, bad := range []float64{-0.01, 1.01, math.NaN()} {
		err := f.SetThreshold(bad)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
	assert.Equal(t, 0.5, f.Threshold())
}

func TestFilter_Reset(t *testing.T) {
	f := newFilter(t)
	for i := 0; i < DefaultHistory; i++ {
		_, err := f.Update(rec("A", 0.9))
		require.NoError(t, err)
	}
	require.True(t, f.State().Stable)

	f.Reset()

	assert.Empty(t, f.History())
	assert.Equal(t, State{}, f.State())

	for i := 1; i < DefaultHistory; i++ {
		res, err := f.Update(rec("B", 0.9))
		require.NoError(t, err)
		assert.False(t, res.State.Stable)
	}
}

func TestNewFilter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero history", cfg: Config{Threshold: 0.8, History: 0}},
		{name: "negative history", cfg: Config{Threshold: 0.8, History: -3}},
		{name: "threshold above one", cfg: Config{Threshold: 1.2, History: 10}},
		{name: "negative threshold", cfg: Config{Threshold: -1, History: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFilter(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
