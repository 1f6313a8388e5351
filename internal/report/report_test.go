package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestReport(t *testing.T) *Report {
	t.Helper()

	b := NewBuilder(WithChecker(&recordingChecker{}))
	require.NoError(t, b.Add("key", "value"))
	require.NoError(t, b.Add("label", "foo"))
	require.NoError(t, b.AddFile("logs", "app.txt", []byte("content")))

	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func TestReport_Values(t *testing.T) {
	r := newTestReport(t)

	require.True(t, r.HasValue("key"))
	require.False(t, r.HasValue("missing"))
	require.Equal(t, "value", r.Value("key", ""))
	require.Equal(t, "default", r.Value("missing", "default"))
	require.Equal(t, map[string]string{"key": "value"}, r.AllValues())
}

func TestReport_Files(t *testing.T) {
	r := newTestReport(t)

	require.True(t, r.HasFiles("logs"))
	require.False(t, r.HasFiles("missing"))
	require.True(t, r.HasFile("logs", "app.txt"))
	require.False(t, r.HasFile("logs", "missing"))
	require.False(t, r.HasFile("missing", "app.txt"))
	require.Nil(t, r.Files("missing"))

	_, ok := r.File("logs", "missing")
	require.False(t, ok)
}

func TestReport_AccessorsReturnCopies(t *testing.T) {
	r := newTestReport(t)

	values := r.AllValues()
	values["key"] = "changed"
	values["new"] = "added"
	require.Equal(t, "value", r.Value("key", ""))
	require.False(t, r.HasValue("new"))

	labels := r.Labels()
	labels[0] = "changed"
	require.Equal(t, []string{"foo"}, r.Labels())

	content, _ := r.File("logs", "app.txt")
	content[0] = 'X'
	files := r.AllFiles()
	files["logs"]["app.txt"][1] = 'X'
	delete(files, "logs")

	got, ok := r.File("logs", "app.txt")
	require.True(t, ok)
	require.Equal(t, []byte("content"), got)
}
