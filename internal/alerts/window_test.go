package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func TestWindowResolve(t *testing.T) {
	r := Window{Delay: 1, Size: 0.25}.Resolve(now)

	assert.Equal(t, time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC), r.Stop)
	assert.Equal(t, time.Date(2024, 6, 9, 6, 0, 0, 0, time.UTC), r.Start)
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{Delay: 0, Size: 1}.Validate())
	assert.Error(t, Window{Delay: -1, Size: 1}.Validate())
	assert.Error(t, Window{Delay: 0, Size: 0}.Validate())
	assert.Error(t, Window{Size: 1, RepeatCycle: -time.Second}.Validate())
}

func TestRangeFromFilters(t *testing.T) {
	def := Window{Delay: 0, Size: 0.25}
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	stop := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	t.Run("both bounds", func(t *testing.T) {
		r, err := RangeFromFilters(&start, &stop, 1, def, now)
		require.NoError(t, err)
		assert.Equal(t, Range{Start: start, Stop: stop}, r)
	})

	t.Run("start only", func(t *testing.T) {
		r, err := RangeFromFilters(&start, nil, 0.5, def, now)
		require.NoError(t, err)
		assert.Equal(t, start.Add(12*time.Hour), r.Stop)
	})

	t.Run("stop only", func(t *testing.T) {
		r, err := RangeFromFilters(nil, &stop, 2, def, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), r.Start)
	})

	t.Run("default window", func(t *testing.T) {
		r, err := RangeFromFilters(nil, nil, 1, def, now)
		require.NoError(t, err)
		assert.Equal(t, now, r.Stop)
		assert.Equal(t, now.Add(-6*time.Hour), r.Start)
	})

	t.Run("inverted", func(t *testing.T) {
		_, err := RangeFromFilters(&stop, &start, 1, def, now)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})
}
