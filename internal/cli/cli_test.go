package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicq/backend/internal/deploy"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// sqliteEnv points the configuration at a throwaway database and static tree
func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DEBUG", "true")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "db.sqlite3"))
	t.Setenv("ADMIN_PASSWORD", "s3cret-admin")
	t.Setenv("STATIC_ROOT", filepath.Join(dir, "staticfiles"))
	t.Setenv("STATICFILES_DIRS", filepath.Join(dir, "assets"))
	t.Setenv("FIXTURE_DIRS", filepath.Join(dir, "fixtures"))
	return dir
}

const fixture = `[
  {"model": "auth.user", "pk": 10, "fields": {"username": "drmehta", "password": "doctorpass", "is_staff": true}},
  {"model": "api.doctor", "pk": 1, "fields": {"user": 10, "name": "Mehta", "specialization": "General", "clinic": 1}},
  {"model": "api.clinic", "pk": 1, "fields": {"name": "City Clinic", "address": "1 Main St", "city": "Pune", "latitude": 18.52, "longitude": 73.85}}
]`

func TestManagementCommandsAgainstSQLite(t *testing.T) {
	dir := sqliteEnv(t)

	out, err := run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Applying 0001")
	assert.Contains(t, out, `Created superuser "admin"`)

	out, err = run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "No migrations to apply.")
	assert.NotContains(t, out, "Created superuser")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fixtures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixtures", "initial_data.json"), []byte(fixture), 0o644))
	out, err = run(t, "", "loaddata", "initial_data.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Installed 3 object(s) from 1 fixture(s)")

	_, err = run(t, "", "loaddata", "missing.json")
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets", "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "css", "app.css"), []byte("body{}"), 0o644))
	out, err = run(t, "", "collectstatic", "--noinput")
	require.NoError(t, err)
	assert.Contains(t, out, "1 static file(s) copied")
	assert.FileExists(t, filepath.Join(dir, "staticfiles", "css", "app.css"))

	// the root is populated now, so without --noinput the operator is asked
	_, err = run(t, "no\n", "collectstatic")
	assert.Error(t, err)

	out, err = run(t, "yes\n", "collectstatic", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "DELETE ALL FILES")
	assert.Contains(t, out, "1 static file(s) copied")

	out, err = run(t, "", "issue-token", "drmehta")
	require.NoError(t, err)
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+$`, out)

	out, err = run(t, "", "wipe")
	require.NoError(t, err)
	assert.Contains(t, out, "Dropped")
}

func TestEnsureAdminRequiresPassword(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := run(t, "", "ensure-admin")
	assert.ErrorContains(t, err, "ADMIN_PASSWORD")
}

func TestBuildPropagatesStepExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	file := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`name: custom
steps:
  - name: ok
    run: ["sh", "-c", "echo first"]
  - name: broken
    run: ["sh", "-c", "exit 3"]
  - name: never
    run: ["sh", "-c", "echo never"]
`), 0o644))

	out, err := run(t, "", "build", "--file", file)
	require.Error(t, err)
	assert.Equal(t, 3, deploy.ExitCode(err))
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "never")
}

func TestBuildRejectsUnknownVariant(t *testing.T) {
	_, err := run(t, "", "build", "--variant", "turbo")
	assert.ErrorContains(t, err, "unknown variant")
	assert.Equal(t, 1, deploy.ExitCode(err))
}

func TestSelectPipelineVariants(t *testing.T) {
	opts := &globalOptions{envFile: "prod.env"}

	p, err := selectPipeline("", "", "", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"migrate", "collectstatic"}, p.StepNames())

	p, err = selectPipeline("seeded", "demo.json", "", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"migrate", "loaddata", "collectstatic"}, p.StepNames())
	step := p.Steps[1].(*deploy.CommandStep)
	assert.Equal(t, []string{"--env-file=prod.env", "loaddata", "demo.json"}, step.Args)
}

func TestPromptYesNo(t *testing.T) {
	var out bytes.Buffer
	confirm := promptYesNo(strings.NewReader("y\nnope\n"), &out)

	ok, err := confirm("Proceed?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Proceed?")

	ok, err = confirm("Again?")
	require.NoError(t, err)
	assert.False(t, ok)

	// EOF counts as a refusal
	ok, err = confirm("Once more?")
	require.NoError(t, err)
	assert.False(t, ok)
}
