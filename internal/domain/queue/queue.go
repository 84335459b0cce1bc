// Package queue provides the play queue and its selection policies.
package queue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musy/internal/domain/track"
)

// Errors
var (
	ErrInvalidIndex = errors.New("queue index out of range")
	ErrEmptyQueue   = errors.New("queue is empty")
)

// Queue is an ordered sequence of tracks with a cursor.
// It is not safe for concurrent use; the playback session owns it.
type Queue struct {
	tracks  []track.Track
	current int // -1 when empty
	history *History
	rng     *rand.Rand
}

// New creates an empty queue whose shuffle avoids the last recentLimit picks.
func New(recentLimit int) *Queue {
	return NewWithRand(recentLimit, newRand())
}

// NewWithRand creates an empty queue drawing shuffle picks from rng.
func NewWithRand(recentLimit int, rng *rand.Rand) *Queue {
	return &Queue{
		current: -1,
		history: NewHistory(recentLimit),
		rng:     rng,
	}
}

// newRand seeds a source from crypto/rand, falling back to the clock.
func newRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Replace swaps the whole sequence, resets the cursor to 0 and clears the history.
func (q *Queue) Replace(tracks []track.Track) {
	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)
	q.history.Clear()
	if len(q.tracks) == 0 {
		q.current = -1
		return
	}
	q.current = 0
}

// Len returns the number of tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty reports whether the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// CurrentIndex returns the cursor, or -1 if the queue is empty.
func (q *Queue) CurrentIndex() int {
	return q.current
}

// Current returns the track under the cursor.
func (q *Queue) Current() (track.Track, bool) {
	if q.current < 0 {
		return track.Track{}, false
	}
	return q.tracks[q.current], true
}

// At returns the track at index.
func (q *Queue) At(index int) (track.Track, error) {
	if q.IsEmpty() {
		return track.Track{}, ErrEmptyQueue
	}
	if index < 0 || index >= len(q.tracks) {
		return track.Track{}, errors.Wrapf(ErrInvalidIndex, "index %d (len %d)", index, len(q.tracks))
	}
	return q.tracks[index], nil
}

// SetCurrent moves the cursor to index.
func (q *Queue) SetCurrent(index int) error {
	if _, err := q.At(index); err != nil {
		return err
	}
	q.current = index
	return nil
}

// Next advances the cursor by one, wrapping to 0 past the end, and returns it.
// On an empty queue it is a no-op returning -1.
func (q *Queue) Next() int {
	if q.IsEmpty() {
		return q.current
	}
	q.current = (q.current + 1) % len(q.tracks)
	return q.current
}

// Prev moves the cursor back by one, wrapping to the last index, and returns it.
func (q *Queue) Prev() int {
	if q.IsEmpty() {
		return q.current
	}
	if q.current == 0 {
		q.current = len(q.tracks) - 1
	} else {
		q.current--
	}
	return q.current
}

// RandomNext picks an index not in the recent history, falling back to the
// full range when every index was played recently. The pick is recorded in
// the history and becomes the cursor.
func (q *Queue) RandomNext() int {
	if q.IsEmpty() {
		return q.current
	}

	candidates := make([]int, 0, len(q.tracks))
	for i := range q.tracks {
		if !q.history.Contains(i) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		for i := range q.tracks {
			candidates = append(candidates, i)
		}
	}

	picked := candidates[q.rng.Intn(len(candidates))]
	q.history.Push(picked)
	q.current = picked
	return picked
}

// Recent returns the recent shuffle picks from oldest to newest.
func (q *Queue) Recent() []int {
	return q.history.Items()
}

// Tracks returns a copy of the sequence.
func (q *Queue) Tracks() []track.Track {
	result := make([]track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}
