package worker_test

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/worker"
)

func TestJobRunner_Broadcast(t *testing.T) {
	repo := &fakeRepo{readings: testReadings()}
	gateway := &fakeGateway{}
	runner := worker.NewJobRunner(newTestJob(repo, gateway, clockwork.NewFakeClock()), zerolog.Nop())

	require.NoError(t, runner.Handle(context.Background(), []byte(`{"job_type":"broadcast"}`)))
	assert.Len(t, gateway.messages(), 2)
}

func TestJobRunner_BroadcastAllFailedIsRetried(t *testing.T) {
	runner := worker.NewJobRunner(newTestJob(&fakeRepo{}, &fakeGateway{}, clockwork.NewFakeClock()), zerolog.Nop())

	err := runner.Handle(context.Background(), []byte(`{"job_type":"broadcast"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, worker.ErrMalformedJob)
}

func TestJobRunner_HealthCheck(t *testing.T) {
	repo := &fakeRepo{readings: testReadings()}
	gateway := &fakeGateway{}
	runner := worker.NewJobRunner(newTestJob(repo, gateway, clockwork.NewFakeClock()), zerolog.Nop())

	require.NoError(t, runner.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))
	assert.Empty(t, gateway.messages())

	failing := worker.NewJobRunner(newTestJob(&fakeRepo{}, gateway, clockwork.NewFakeClock()), zerolog.Nop())
	err := failing.Handle(context.Background(), []byte(`{"job_type":"health_check"}`))
	assert.ErrorIs(t, err, airquality.ErrLookupFailed)
}

func TestJobRunner_UnknownAndMalformed(t *testing.T) {
	repo := &fakeRepo{readings: testReadings()}
	runner := worker.NewJobRunner(newTestJob(repo, &fakeGateway{}, clockwork.NewFakeClock()), zerolog.Nop())

	assert.NoError(t, runner.Handle(context.Background(), []byte(`{"job_type":"provider_refresh"}`)))
	assert.ErrorIs(t, runner.Handle(context.Background(), []byte(`not json`)), worker.ErrMalformedJob)
	assert.Empty(t, repo.fetched())
}
