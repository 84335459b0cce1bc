package queue

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musy/internal/domain/track"
)

func makeTracks(n int) []track.Track {
	tracks := make([]track.Track, n)
	for i := range tracks {
		tracks[i] = track.Track{
			ID:        fmt.Sprintf("track-%d", i),
			SourceURL: fmt.Sprintf("https://cdn.example.com/%d.mp3", i),
		}
	}
	return tracks
}

func newTestQueue(n int) *Queue {
	q := NewWithRand(DefaultRecentLimit, rand.New(rand.NewSource(42)))
	q.Replace(makeTracks(n))
	return q
}

func TestQueue_Empty(t *testing.T) {
	q := New(DefaultRecentLimit)

	assert.True(t, q.IsEmpty())
	assert.Equal(t, -1, q.CurrentIndex())
	assert.Equal(t, -1, q.Next())
	assert.Equal(t, -1, q.Prev())
	assert.Equal(t, -1, q.RandomNext())

	_, ok := q.Current()
	assert.False(t, ok)

	err := q.SetCurrent(0)
	assert.True(t, errors.Is(err, ErrEmptyQueue))
}

func TestQueue_Replace(t *testing.T) {
	q := newTestQueue(4)
	require.NoError(t, q.SetCurrent(3))
	q.RandomNext()
	require.NotZero(t, len(q.Recent()))

	q.Replace(makeTracks(2))

	assert.Equal(t, 0, q.CurrentIndex())
	assert.Equal(t, 2, q.Len())
	assert.Empty(t, q.Recent())

	q.Replace(nil)
	assert.Equal(t, -1, q.CurrentIndex())
}

func TestQueue_ReplaceCopiesInput(t *testing.T) {
	tracks := makeTracks(2)
	q := New(DefaultRecentLimit)
	q.Replace(tracks)

	tracks[0].ID = "mutated"

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "track-0", cur.ID)
}

func TestQueue_SetCurrent(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr error
	}{
		{name: "first", index: 0},
		{name: "last", index: 2},
		{name: "negative", index: -1, wantErr: ErrInvalidIndex},
		{name: "past end", index: 3, wantErr: ErrInvalidIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(3)
			err := q.SetCurrent(tt.index)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Equal(t, 0, q.CurrentIndex())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, q.CurrentIndex())
		})
	}
}

func TestQueue_NextIsCyclic(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for start := 0; start < n; start++ {
			q := newTestQueue(n)
			require.NoError(t, q.SetCurrent(start))
			for i := 0; i < n; i++ {
				q.Next()
			}
			assert.Equal(t, start, q.CurrentIndex(), "len=%d start=%d", n, start)
		}
	}
}

func TestQueue_NextWraps(t *testing.T) {
	q := newTestQueue(3)
	require.NoError(t, q.SetCurrent(2))
	assert.Equal(t, 0, q.Next())
}

func TestQueue_PrevWraps(t *testing.T) {
	q := newTestQueue(3)
	assert.Equal(t, 2, q.Prev())
	assert.Equal(t, 1, q.Prev())
}

func TestQueue_RandomNextAvoidsRecent(t *testing.T) {
	q := newTestQueue(8)
	var picks []int
	for i := 0; i < 200; i++ {
		picked := q.RandomNext()
		from := len(picks) - DefaultRecentLimit
		if from < 0 {
			from = 0
		}
		assert.NotContains(t, picks[from:], picked, "pick %d repeated within window", i)
		picks = append(picks, picked)
		assert.Equal(t, picked, q.CurrentIndex())
	}
}

func TestQueue_RandomNextFallsBackToFullRange(t *testing.T) {
	for n := 1; n <= DefaultRecentLimit; n++ {
		q := newTestQueue(n)
		seen := make(map[int]bool)
		for i := 0; i < n; i++ {
			seen[q.RandomNext()] = true
		}
		assert.Len(t, seen, n, "first %d picks cover the queue", n)

		picked := q.RandomNext()
		assert.GreaterOrEqual(t, picked, 0)
		assert.Less(t, picked, n)
	}
}

func TestQueue_TracksReturnsCopy(t *testing.T) {
	q := newTestQueue(2)
	tracks := q.Tracks()
	tracks[0].ID = "changed"

	trk, err := q.At(0)
	require.NoError(t, err)
	assert.Equal(t, "track-0", trk.ID)
}
