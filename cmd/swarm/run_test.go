package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everydev1618/swarm"
	"github.com/everydev1618/swarm/dsl"
	"github.com/everydev1618/swarm/store"
)

const patrolProgram = `
Import sys;
Action hop(n) { takeOff(); sys.print("hop", sys.vehicle()); put n to #last#; land(); }
Agent drone { hop; }
Task patrol({d[s~e]}) { init {} goal { $ 1 } routine { each d[s~e] { hop(id); } } }
Main { Agent drone 2; patrol({drone[0~2]}); }
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mission.swarm")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func testOptions(t *testing.T) (*runOptions, *bytes.Buffer) {
	t.Helper()
	cfg := swarm.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "swarm.db")
	cfg.Provider.Echo = false
	out := &bytes.Buffer{}
	return &runOptions{cfg: cfg, stdout: out, stderr: &bytes.Buffer{}}, out
}

func TestExecuteRecordsRun(t *testing.T) {
	opts, out := testOptions(t)
	opts.knowledgeOut = filepath.Join(t.TempDir(), "final.json")

	runID, err := execute(context.Background(), writeProgram(t, patrolProgram), opts)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hop drone_0")
	assert.Contains(t, out.String(), "hop drone_1")

	st, err := openStore(opts.cfg.Store.Path)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, run.Status)
	require.NotNil(t, run.FinishedAt)

	events, err := st.ListEvents(runID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)

	saved, err := st.LoadKnowledge(runID)
	require.NoError(t, err)
	assert.Contains(t, saved, "last")

	final, err := swarm.NewFilePersistence(opts.knowledgeOut).Load()
	require.NoError(t, err)
	assert.Contains(t, final, "last")
}

func TestExecuteRecordsFailure(t *testing.T) {
	opts, _ := testOptions(t)
	src := "Action a() { get x from #never#; }\nAgent drone { a; }\n" +
		"Task t({d[s~e]}) { init {} goal { $ 1 } routine { order d[s~e] { a(); } } }\n" +
		"Main { Agent drone 1; t({drone[0~1]}); }\n"

	runID, err := execute(context.Background(), writeProgram(t, src), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, dsl.ErrIDNotFound)

	st, err := openStore(opts.cfg.Store.Path)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestExecuteSeedsKnowledge(t *testing.T) {
	opts, out := testOptions(t)
	opts.cfg.Store.Disabled = true
	opts.cfg.Knowledge.Seed = map[string]any{"start": int64(4)}
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, swarm.NewFilePersistence(seed).Save(map[string]any{"step": int64(3)}))
	opts.knowledgeIn = seed

	src := `
Import sys;
Action show() { get a from #start#; get b from #step#; sys.print(a + b); }
Agent drone { show; }
Task t({d[s~e]}) { init {} goal { $ 1 } routine { order d[s~e] { show(); } } }
Main { Agent drone 1; t({drone[0~1]}); }
`
	_, err := execute(context.Background(), writeProgram(t, src), opts)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "7")
}

func TestExecuteStaticError(t *testing.T) {
	opts, _ := testOptions(t)
	opts.cfg.Store.Disabled = true

	_, err := execute(context.Background(), writeProgram(t, "Action a() {}\nAgent d { a; }\nMain { Agent q 2; }"), opts)
	require.Error(t, err)
	stage, ok := dsl.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, dsl.StageSemantic, stage)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
