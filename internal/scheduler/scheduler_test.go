package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopJob struct{ name string }

func (j noopJob) Run() error   { return nil }
func (j noopJob) Name() string { return j.name }

func TestAddJob_ValidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", noopJob{name: "harvest"}))
	require.NoError(t, s.AddJob("0 0 * * * *", noopJob{name: "snapshot"}))
}

func TestAddJob_InvalidScheduleNamesJob(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("every full moon", noopJob{name: "harvest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every full moon")
	assert.Contains(t, err.Error(), "harvest")
}
