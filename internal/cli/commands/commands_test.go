package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/answerdesk/internal/cli/config"
	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/ui"
	"github.com/leapstack-labs/answerdesk/internal/ui/features"
)

// setupTestConfig loads a config with a database in a temp directory.
// extra is appended to the config file.
func setupTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)
	content := "database: qa.db\nstorage:\n  local_dir: uploads\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	loadConfigAt(t, path)
	return dir
}

func loadConfigAt(t *testing.T, path string) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig(path, nil)
	require.NoError(t, err)
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	out, err := runCommand(t, cmd, args...)
	require.NoError(t, err, out)
	return out
}

func createQuestion(t *testing.T, title string) {
	t.Helper()
	out := mustRun(t, NewQuestionCommand(), "create", "--title", title, "--content", "<p>Текст вопроса</p>")
	require.Contains(t, out, "Created question #")
}

func writeAttachment(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// Metadata
// =============================================================================

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{"serve", NewServeCommand(), "serve", []string{"port", "dev", "watch", "author", "feedback-style", "redis", "open"}},
		{"migrate", NewMigrateCommand(), "migrate", nil},
		{"doctor", NewDoctorCommand(), "doctor", []string{"format", "server", "redis"}},
		{"question", NewQuestionCommand(), "question", nil},
		{"answer", NewAnswerCommand(), "answer", nil},
		{"file", NewFileCommand(), "file", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestMutationCommandsHaveClientFlags(t *testing.T) {
	for _, path := range [][]string{{"answer", "set"}, {"answer", "delete"}, {"file", "delete"}} {
		root := &cobra.Command{Use: "answerdesk"}
		root.AddCommand(NewAnswerCommand(), NewFileCommand())

		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		for _, flag := range []string{"server", "timeout", "author", "local", "yes"} {
			assert.NotNil(t, cmd.Flags().Lookup(flag), "%v: flag %q should exist", path, flag)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID("question", tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

// =============================================================================
// Questions
// =============================================================================

func TestQuestionCommands(t *testing.T) {
	setupTestConfig(t, "")
	createQuestion(t, "Как подать заявку?")

	out := mustRun(t, NewQuestionCommand(), "list")
	assert.Contains(t, out, "Как подать заявку?")
	assert.Contains(t, out, "(1 questions)")

	out = mustRun(t, NewQuestionCommand(), "show", "1")
	assert.Contains(t, out, "# Как подать заявку?")
	assert.Contains(t, out, "Текст вопроса")
	assert.Contains(t, out, "Ответ отсутствует")

	_, err := runCommand(t, NewQuestionCommand(), "show", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Вопрос не найден")
}

func TestQuestionList_Empty(t *testing.T) {
	setupTestConfig(t, "")
	out := mustRun(t, NewQuestionCommand(), "list")
	assert.Contains(t, out, "(0 questions)")
}

func TestMigrateCommand(t *testing.T) {
	dir := setupTestConfig(t, "")
	out := mustRun(t, NewMigrateCommand())
	assert.Contains(t, out, filepath.Join(dir, "qa.db"))
	assert.Contains(t, out, "schema version")
}

// =============================================================================
// Local mutations
// =============================================================================

func TestAnswerSet_Local(t *testing.T) {
	dir := setupTestConfig(t, "")
	createQuestion(t, "Вопрос")
	attachment := writeAttachment(t, dir, "notes.txt", "hello")

	out := mustRun(t, NewAnswerCommand(), "set", "1", "<p>42</p>", "--local", "--attach", attachment)

	assert.Contains(t, out, "✓ Ответ успешно сохранён")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, config.DefaultAuthor)
	assert.Contains(t, out, "notes.txt")
}

func TestAnswerSet_Markdown(t *testing.T) {
	dir := setupTestConfig(t, "")
	createQuestion(t, "Вопрос")
	source := writeAttachment(t, dir, "answer.md", "Это **важно**")

	mustRun(t, NewAnswerCommand(), "set", "1", "--file", source, "--markdown", "--local")

	out := mustRun(t, NewQuestionCommand(), "show", "1")
	assert.Contains(t, out, "**важно**")
}

func TestAnswerSet_Rejected(t *testing.T) {
	dir := setupTestConfig(t, "")
	createQuestion(t, "Вопрос")

	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"empty answer", []string{"set", "1", "   ", "--local"}, "✗ Ошибка: Ответ не может быть пустым"},
		{"bad file type", []string{"set", "1", "<p>ok</p>", "--local", "--attach", writeAttachment(t, dir, "run.exe", "MZ")}, "✗ Ошибка: Тип файла .exe не поддерживается."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, NewAnswerCommand(), tt.args...)
			require.ErrorIs(t, err, dispatch.ErrServerRejected)
			assert.Contains(t, out, tt.message)
		})
	}
}

func TestAnswerSet_NoBody(t *testing.T) {
	setupTestConfig(t, "")
	_, err := runCommand(t, NewAnswerCommand(), "set", "1", "--local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no answer given")
}

func TestAnswerSet_UnknownQuestion(t *testing.T) {
	setupTestConfig(t, "")
	_, err := runCommand(t, NewAnswerCommand(), "set", "5", "<p>42</p>", "--local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load question 5")
}

func TestAnswerDelete_Local(t *testing.T) {
	dir := setupTestConfig(t, "")
	createQuestion(t, "Вопрос")
	mustRun(t, NewAnswerCommand(), "set", "1", "<p>42</p>", "--local", "--attach", writeAttachment(t, dir, "notes.txt", "hello"))

	out := mustRun(t, NewAnswerCommand(), "delete", "1", "--local", "--yes")

	assert.Contains(t, out, "• Ответ успешно удалён")
	assert.Contains(t, out, "Ответ отсутствует")
	assert.NotContains(t, out, "notes.txt")
}

func TestFileDelete_Local(t *testing.T) {
	dir := setupTestConfig(t, "")
	createQuestion(t, "Вопрос")
	mustRun(t, NewAnswerCommand(), "set", "1", "<p>42</p>", "--local",
		"--attach", writeAttachment(t, dir, "guide.pdf", "%PDF"),
		"--attach", writeAttachment(t, dir, "notes.txt", "hello"))

	out := mustRun(t, NewFileCommand(), "delete", "1", "1", "--local", "--yes")

	assert.Contains(t, out, "✓ "+dispatch.MsgFileDeleted)
	assert.NotContains(t, out, "guide.pdf")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "42")
}

func TestFileDelete_UnknownFile(t *testing.T) {
	setupTestConfig(t, "")
	createQuestion(t, "Вопрос")

	out, err := runCommand(t, NewFileCommand(), "delete", "1", "9", "--local", "--yes")
	require.ErrorIs(t, err, dispatch.ErrServerRejected)
	assert.Contains(t, out, "✗ Ошибка: Файл не найден")
}

func TestFileDelete_FileOfAnotherQuestion(t *testing.T) {
	dir := setupTestConfig(t, "")
	createQuestion(t, "Первый")
	createQuestion(t, "Второй")
	mustRun(t, NewAnswerCommand(), "set", "1", "<p>42</p>", "--local", "--attach", writeAttachment(t, dir, "guide.pdf", "%PDF"))

	out, err := runCommand(t, NewFileCommand(), "delete", "2", "1", "--local", "--yes")
	require.ErrorIs(t, err, dispatch.ErrServerRejected)
	assert.Contains(t, out, "✗ Ошибка: Файл не найден")

	out = mustRun(t, NewQuestionCommand(), "show", "1")
	assert.Contains(t, out, "guide.pdf")
}

// =============================================================================
// Remote mutations
// =============================================================================

func setupTestServer(t *testing.T, questions ...features.TestQuestion) (*httptest.Server, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t, questions...)

	server := ui.NewServer(ui.Config{
		Service:            fixture.Service,
		SessionSecret:      "test-secret",
		ReloadOnFileDelete: true,
	})
	handler, err := server.Handler()
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, fixture
}

func TestFileDelete_Remote(t *testing.T) {
	srv, fixture := setupTestServer(t, features.TestQuestion{
		Title:  "Вопрос",
		Answer: "<p>42</p>",
		Author: "alice",
		Files:  []features.TestFile{{Name: "guide.pdf", Content: "%PDF"}, {Name: "notes.txt", Content: "hello"}},
	})
	setupTestConfig(t, fmt.Sprintf("client:\n  server_url: %s\n", srv.URL))
	q := fixture.Questions[0]

	out := mustRun(t, NewFileCommand(), "delete", fmt.Sprint(q.ID), "1", "--yes")

	assert.Contains(t, out, "✓ "+dispatch.MsgFileDeleted)
	assert.NotContains(t, out, "guide.pdf")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "alice")

	attachments, err := fixture.Store.ListAttachments(q.ID)
	require.NoError(t, err)
	assert.Len(t, attachments, 1)
}

func TestAnswerSet_Remote(t *testing.T) {
	srv, fixture := setupTestServer(t, features.TestQuestion{Title: "Вопрос"})
	setupTestConfig(t, fmt.Sprintf("client:\n  server_url: %s\nui:\n  author: moderator\n", srv.URL))
	q := fixture.Questions[0]

	out := mustRun(t, NewAnswerCommand(), "set", fmt.Sprint(q.ID), "<p>42</p>")

	assert.Contains(t, out, "✓ Ответ успешно сохранён")
	assert.Contains(t, out, "moderator")

	saved, err := fixture.Service.Question(t.Context(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>42</p>", saved.Answer)
	assert.Equal(t, "moderator", saved.AnswerAuthor)
}

func TestAnswerSet_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	setupTestConfig(t, fmt.Sprintf("client:\n  server_url: %s\n  timeout: 1s\n", srv.URL))

	_, err := runCommand(t, NewAnswerCommand(), "set", "1", "<p>42</p>")
	require.Error(t, err)
	assert.ErrorIs(t, err, dispatch.ErrTransportFailed)
}

// =============================================================================
// Doctor
// =============================================================================

func TestDoctorCommand(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(healthy.Close)
	setupTestConfig(t, fmt.Sprintf("client:\n  server_url: %s\n", healthy.URL))

	out := mustRun(t, NewDoctorCommand(), "--format", "json")

	var checks []HealthCheck
	require.NoError(t, json.Unmarshal([]byte(out), &checks))
	require.Len(t, checks, 4)
	for _, c := range checks {
		assert.Equal(t, statusPass, c.Status, "%s: %s", c.Name, c.Details)
	}
}

func TestDoctorCommand_YAML(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	setupTestConfig(t, fmt.Sprintf("client:\n  server_url: %s\n", down.URL))

	out := mustRun(t, NewDoctorCommand(), "--format", "yaml")

	var checks []HealthCheck
	require.NoError(t, yaml.Unmarshal([]byte(out), &checks))
	require.Len(t, checks, 4)
	assert.Equal(t, "server", checks[3].Name)
	assert.Equal(t, statusWarn, checks[3].Status)
}

func TestDoctorCommand_UnknownFormat(t *testing.T) {
	setupTestConfig(t, "")
	_, err := runCommand(t, NewDoctorCommand(), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestDoctorCommand_TextAndWarnings(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	setupTestConfig(t, fmt.Sprintf("client:\n  server_url: %s\n", down.URL))

	out := mustRun(t, NewDoctorCommand())
	assert.Contains(t, out, "Database")
	assert.Contains(t, out, "Warn")
	assert.Contains(t, out, "use --local")
}
