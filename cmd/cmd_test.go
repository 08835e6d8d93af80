package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/store"
)

const courseYAML = `course:
  id: 42
  title: Data Privacy Basics
  version: 1.0.0
  lessons:
    - id: 1
      title: Intro
      blocks:
        - id: b1
          type: text
          title: Welcome
`

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestCourseImportShowDelete(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "learnpath.db")
	docPath := filepath.Join(dir, "privacy.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(courseYAML), 0o644))

	require.NoError(t, run(t, "course", "import", docPath, "--db", dbPath))
	require.NoError(t, run(t, "course", "show", "42", "--db", dbPath))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	info, err := st.Courses().Info(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Data Privacy Basics", info.Title)
	assert.Equal(t, "v1.0.0", info.Version)
	require.NoError(t, st.Close())

	require.NoError(t, run(t, "course", "delete", "42", "--db", dbPath))
	err = run(t, "course", "show", "42", "--db", dbPath)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReadCourseRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"course":{"id":1}}`), 0o644))
	_, err := readCourse(path)
	assert.Error(t, err)
}

func TestLocalCompleterCreditsAndNotifiesOnce(t *testing.T) {
	st, err := store.Open("file:cmd_completer?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	engine := gamification.NewEngine(st.Gamification())
	require.NoError(t, engine.Seed(ctx))
	dispatcher := notify.NewDispatcher(time.Second, nil, nil, notify.NewInApp(st.Notifications()))

	c := &localCompleter{engine: engine, dispatcher: dispatcher, title: "Privacy", logger: zap.NewNop()}
	require.NoError(t, c.CompleteCourse(ctx, "u1", "42", 20))
	require.NoError(t, c.CompleteCourse(ctx, "u1", "42", 20))
	dispatcher.Wait()

	sum, err := engine.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 170, sum.XP.TotalXP)

	list, err := st.Notifications().List(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPrintVersion(t *testing.T) {
	bi := buildInfo{
		Version:  "v1.4.0",
		Revision: "0123456789abcdef",
		Modified: true,
		Go:       "go1.25.6",
		Platform: "linux/amd64",
	}

	var buf bytes.Buffer
	printVersion(&buf, bi, false)
	out := buf.String()
	assert.Contains(t, out, "learnpath v1.4.0")
	assert.Contains(t, out, "commit:   0123456789ab-dirty")
	assert.Contains(t, out, "platform: linux/amd64")

	buf.Reset()
	printVersion(&buf, bi, true)
	assert.Equal(t, "v1.4.0\n", buf.String())

	buf.Reset()
	printVersion(&buf, buildInfo{Version: "(devel)", Go: "go1.25.6", Platform: "linux/arm64"}, false)
	assert.NotContains(t, buf.String(), "commit")
}
