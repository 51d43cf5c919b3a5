package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingService logs lifecycle calls into a shared journal.
type recordingService struct {
	name     string
	journal  *[]string
	startErr error
	stopErr  error
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(ctx context.Context) error {
	*s.journal = append(*s.journal, "start "+s.name)
	return s.startErr
}

func (s *recordingService) Stop(ctx context.Context) error {
	*s.journal = append(*s.journal, "stop "+s.name)
	return s.stopErr
}

func TestManagerStartOrderStopReverse(t *testing.T) {
	var journal []string
	m := NewManager()
	require.NoError(t, m.Register(&recordingService{name: "a", journal: &journal}))
	require.NoError(t, m.Register(&recordingService{name: "b", journal: &journal}))
	require.NoError(t, m.Register(&recordingService{name: "c", journal: &journal}))

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Stop(ctx))

	require.Equal(t, []string{
		"start a", "start b", "start c",
		"stop c", "stop b", "stop a",
	}, journal)
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var journal []string
	m := NewManager()
	require.NoError(t, m.Register(&recordingService{name: "a", journal: &journal}))
	require.Error(t, m.Register(&recordingService{name: "a", journal: &journal}))
}

func TestManagerRejectsRegisterAfterStart(t *testing.T) {
	var journal []string
	m := NewManager()
	require.NoError(t, m.Register(&recordingService{name: "a", journal: &journal}))
	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Register(&recordingService{name: "b", journal: &journal}))
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	var journal []string
	boom := errors.New("boom")
	m := NewManager()
	require.NoError(t, m.Register(&recordingService{name: "a", journal: &journal}))
	require.NoError(t, m.Register(&recordingService{name: "b", journal: &journal, startErr: boom}))
	require.NoError(t, m.Register(&recordingService{name: "c", journal: &journal}))

	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)

	// a started and was rolled back; c was never touched.
	require.Equal(t, []string{"start a", "start b", "stop a"}, journal)
}

func TestManagerStopReportsFirstError(t *testing.T) {
	var journal []string
	boom := errors.New("boom")
	m := NewManager()
	require.NoError(t, m.Register(&recordingService{name: "a", journal: &journal, stopErr: boom}))
	require.NoError(t, m.Register(&recordingService{name: "b", journal: &journal}))

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.ErrorIs(t, m.Stop(ctx), boom)

	// Both services still stopped, despite a's error.
	require.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, journal)
}

func TestNoopService(t *testing.T) {
	svc := NoopService{ServiceName: "noop"}
	require.Equal(t, "noop", svc.Name())
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop(context.Background()))
}
