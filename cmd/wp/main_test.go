package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workplace/internal/config"
	"workplace/internal/domain"
	"workplace/internal/journal"
	"workplace/internal/server"
	"workplace/internal/store"
	workplacesdk "workplace/sdk/go"
)

func newTestRemote(t *testing.T) (string, *store.Store) {
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
	handler, err := server.New(server.Config{Store: st, Journal: j, BasePath: "/v0", Operator: "Operator"})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		detach()
		j.Close()
	})
	return ts.URL + "/v0", st
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTaskCommands(t *testing.T) {
	url, st := newTestRemote(t)

	out, err := run(t, "--remote", url, "--json", "task", "list")
	require.NoError(t, err)
	var tasks []workplacesdk.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	assert.Len(t, tasks, 3)

	out, err = run(t, "--remote", url, "--json", "task", "create",
		"--title", "Publish release notes",
		"--objective", "Summarise the sprint for stakeholders",
		"--priority", "high",
		"--tags", "docs, release",
		"--due-in", "24h")
	require.NoError(t, err)
	var created workplacesdk.Task
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "intake", created.Stage)
	assert.Equal(t, []string{"docs", "release"}, created.Tags)
	require.NotNil(t, created.DueAt)

	_, err = run(t, "--remote", url, "task", "advance", created.ID)
	require.NoError(t, err)
	task, ok := st.Task(created.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StageResearch, task.Stage)

	out, err = run(t, "--remote", url, "task", "assign", created.ID, "model-gemini")
	require.NoError(t, err)
	assert.Contains(t, out, "Gemini Vision Expert")

	_, err = run(t, "--remote", url, "task", "stage", created.ID, "complete")
	require.NoError(t, err)
	_, err = run(t, "--remote", url, "task", "advance", created.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage_boundary")

	_, err = run(t, "--remote", url, "task", "create", "--title", "Tiny")
	assert.EqualError(t, err, "--title and --objective required")
}

func TestAutomationAndLogCommands(t *testing.T) {
	url, st := newTestRemote(t)

	out, err := run(t, "--remote", url, "automation", "toggle", "automation-routing")
	require.NoError(t, err)
	assert.Contains(t, out, "Task Router is now paused")

	_, err = run(t, "--remote", url, "log", "add", "Checked overnight queue", "--task", "task-ops-03")
	require.NoError(t, err)
	latest := st.Activity()[0]
	assert.Equal(t, "Operator", latest.Actor)
	assert.Equal(t, domain.ChannelHuman, latest.Channel)
	assert.Equal(t, "task-ops-03", latest.TaskID)

	out, err = run(t, "--remote", url, "--json", "log", "tail", "--channel", "human", "-n", "5")
	require.NoError(t, err)
	var page workplacesdk.PaginatedActivity
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Checked overnight queue", page.Items[0].Message)

	out, err = run(t, "--remote", url, "metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "Models online")
	assert.Contains(t, out, "3/4")
}

func TestLocalCommands(t *testing.T) {
	out, err := run(t, "fixtures", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "(built-in) is valid")

	out, err = run(t, "fixtures", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "model-deepseek")

	_, err = run(t, "fixtures", "validate", "--file", "does-not-exist.yaml")
	assert.EqualError(t, err, "seed file does-not-exist.yaml not found")

	out, err = run(t, "--remote", "http://example.invalid/v0", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "url: http://example.invalid/v0")
	assert.Contains(t, out, "level: info")
}

func TestMatches(t *testing.T) {
	e := workplacesdk.Activity{Channel: "human", Actor: "Ops Analyst", TaskID: "task-ops-03"}
	assert.True(t, matches(workplacesdk.ActivityQuery{}, e))
	assert.True(t, matches(workplacesdk.ActivityQuery{Channel: "human", TaskID: "task-ops-03"}, e))
	assert.False(t, matches(workplacesdk.ActivityQuery{Actor: "System"}, e))
}

func TestTailFollowerFirstSnapshot(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entry := func(id string, offset time.Duration, channel string) workplacesdk.Activity {
		return workplacesdk.Activity{ID: id, Timestamp: base.Add(offset), Channel: channel, Actor: "System"}
	}
	older := entry("log-1", 0, "system")
	paged := entry("log-2", time.Minute, "system")
	raced := entry("log-3", 2*time.Minute, "system")
	otherChannel := entry("log-4", 3*time.Minute, "human")

	f := newTailFollower(workplacesdk.ActivityQuery{Channel: "system"}, []workplacesdk.Activity{paged}, base.Add(time.Hour))

	// Entries logged between the page fetch and the first frame still print.
	got := f.fresh([]workplacesdk.Activity{otherChannel, raced, paged, older})
	require.Len(t, got, 1)
	assert.Equal(t, "log-3", got[0].ID)

	assert.Empty(t, f.fresh([]workplacesdk.Activity{otherChannel, raced, paged, older}))

	later := entry("log-5", 4*time.Minute, "system")
	latest := entry("log-6", 5*time.Minute, "system")
	got = f.fresh([]workplacesdk.Activity{latest, later, otherChannel, raced, paged, older})
	require.Len(t, got, 2)
	assert.Equal(t, "log-5", got[0].ID)
	assert.Equal(t, "log-6", got[1].ID)
}

func TestTailFollowerEmptyPage(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newTailFollower(workplacesdk.ActivityQuery{}, nil, fetched)
	got := f.fresh([]workplacesdk.Activity{
		{ID: "log-2", Timestamp: fetched.Add(time.Second)},
		{ID: "log-1", Timestamp: fetched.Add(-time.Hour)},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "log-2", got[0].ID)
}
