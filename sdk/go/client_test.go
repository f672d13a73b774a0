package workplacesdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workplace/internal/config"
	"workplace/internal/journal"
	"workplace/internal/server"
	"workplace/internal/store"
)

func newTestAPI(t *testing.T) (*Client, *store.Store) {
	t.Helper()
	seed := config.DefaultFixtures().Resolve(time.Now())
	st := store.New(store.Snapshot{
		Models:      seed.Models,
		Tasks:       seed.Tasks,
		Automations: seed.Automations,
		Activity:    seed.Activity,
	})
	j, err := journal.Open(":memory:", nil)
	require.NoError(t, err)
	detach, err := j.Attach(st)
	require.NoError(t, err)
	handler, err := server.New(server.Config{Store: st, Journal: j, BasePath: "/v0"})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
		detach()
		j.Close()
	})
	return New(ts.URL + "/v0/"), st
}

func TestClientTaskLifecycle(t *testing.T) {
	c, st := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, c.Health(ctx))

	task, err := c.CreateTask(ctx, CreateTaskRequest{
		Title:     "Ship onboarding flow",
		Objective: "Deliver v1 onboarding with telemetry",
		Priority:  "high",
		TagsInput: "onboarding, growth",
	})
	require.NoError(t, err)
	assert.Equal(t, "intake", task.Stage)
	assert.Equal(t, []string{"onboarding", "growth"}, task.Tags)

	task, err = c.Advance(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "research", task.Stage)
	task, err = c.Back(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "intake", task.Stage)

	_, err = c.Back(ctx, task.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	task, err = c.Assign(ctx, task.ID, "model-gpt4o")
	require.NoError(t, err)
	assert.Equal(t, "GPT-4 Omni", task.ModelName)
	task, err = c.Assign(ctx, task.ID, "")
	require.NoError(t, err)
	assert.Nil(t, task.AssignedModelID)

	task, err = c.SetStage(ctx, task.ID, "complete")
	require.NoError(t, err)
	assert.Equal(t, "complete", task.Stage)

	tasks, err := c.Tasks(ctx, "complete")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.Len(t, st.Tasks(), 4)
}

func TestClientErrors(t *testing.T) {
	c, _ := newTestAPI(t)
	ctx := context.Background()

	_, err := c.Task(ctx, "task-missing")
	assert.True(t, IsNotFound(err))

	_, err = c.CreateTask(ctx, CreateTaskRequest{Title: "abc", Objective: "long enough objective"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "validation_failed")
}

func TestClientAutomationsAndActivity(t *testing.T) {
	c, _ := newTestAPI(t)
	ctx := context.Background()

	a, err := c.ToggleAutomation(ctx, "automation-retros")
	require.NoError(t, err)
	assert.Equal(t, "active", a.Status)

	entry, err := c.LogEvent(ctx, LogEventRequest{Message: "Checked in", Channel: "human", Actor: "Ops Analyst"})
	require.NoError(t, err)

	page, err := c.ActivityPage(ctx, ActivityQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, entry.ID, page.Items[0].ID)
	assert.Equal(t, "Retro Synthesizer reactivated by operator.", page.Items[1].Message)
	assert.NotEmpty(t, page.NextCursor)

	page, err = c.ActivityPage(ctx, ActivityQuery{Channel: "human"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	m, err := c.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, m.ModelsTotal)
	assert.Equal(t, uint64(2), m.Version)

	status := "offline"
	model, err := c.UpdateModel(ctx, "model-gemini", &status, nil)
	require.NoError(t, err)
	assert.Equal(t, "offline", model.Status)
	assert.InDelta(t, 0.18, model.Load, 1e-9)
}

func TestClientStream(t *testing.T) {
	c, st := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := errors.New("stop")
	var versions []uint64
	err := c.Stream(ctx, "automations", func(s State) error {
		versions = append(versions, s.Version)
		if s.Version == 0 {
			go st.ToggleAutomation("automation-safety")
			return nil
		}
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []uint64{0, 1}, versions)
}
