package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testbed/config"
)

const manifest = `name: accounts
entry_points:
  testbed.models:
    - "users = accounts/models:User"
    - "tokens = accounts/models:Token"
  testbed.views:
    - "login = accounts/views:login"
`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts.yaml"), []byte(manifest), 0644))
	return dir
}

func TestEntryPointsCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	cmd := &EntryPointsCmd{Group: "testbed.models", Dir: []string{writeManifest(t)}, Format: "json"}
	require.NoError(t, cmd.Run(cli))

	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, map[string]map[string]string{
		"testbed.models": {"users": "accounts/models:User", "tokens": "accounts/models:Token"},
	}, got)
}

func TestEntryPointsCmd_TableListsAllGroups(t *testing.T) {
	var out bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	cmd := &EntryPointsCmd{Dir: []string{writeManifest(t)}, Format: "table"}
	require.NoError(t, cmd.Run(cli))

	text := out.String()
	assert.Contains(t, text, "[testbed.models]")
	assert.Contains(t, text, "[testbed.views]")
	assert.Contains(t, text, "login")
	assert.Contains(t, text, "accounts/models:Token")
}

func TestEntryPointsCmd_SettingsDirs(t *testing.T) {
	var out bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)
	cli.SetSettings(&config.Settings{ManifestDirs: config.StringArray{writeManifest(t)}})

	cmd := &EntryPointsCmd{Group: "testbed.views", Format: "table"}
	require.NoError(t, cmd.Run(cli))
	assert.Contains(t, out.String(), "accounts/views:login")
}

func TestEntryPointsCmd_NoManifests(t *testing.T) {
	var out bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	cmd := &EntryPointsCmd{Dir: []string{filepath.Join(t.TempDir(), "missing")}, Format: "table"}
	require.NoError(t, cmd.Run(cli))
	assert.Equal(t, "No entry points registered.\n", out.String())
}

func TestSettingsCmd_JSON(t *testing.T) {
	t.Setenv("TESTBED_HOME", t.TempDir())
	var out bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)
	cli.SetSettings(&config.Settings{BrokerURL: "amqp://broker//"})

	require.NoError(t, (&SettingsCmd{Format: "json"}).Run(cli))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "amqp://broker//", got["broker_url"])
	assert.Equal(t, false, got["e2e"])
	assert.Equal(t, []any{"Chrome"}, got["browsers"])
	assert.Equal(t, filepath.Join(os.Getenv("TESTBED_HOME"), "settings.json"), got["settings_file"])
}

func TestCLI_ParsesEntryPoints(t *testing.T) {
	var out bytes.Buffer
	var cli CLI
	cli.SetOutput(&out)

	parser, err := kong.New(&cli, kong.Name("testbed"), kong.Bind(&cli), kong.Exit(func(int) {}))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"entrypoints", "testbed.models", "--dir", writeManifest(t), "--format", "json"})
	require.NoError(t, err)
	require.NoError(t, ctx.Run())
	assert.Contains(t, out.String(), "accounts/models:User")
}

// fakeTools writes go and gofmt stand-ins into a directory. The fake go
// records its test arguments in $FAKE_LOG and exits with $FAKE_TEST_EXIT.
func fakeTools(t *testing.T) (goBin, gofmtBin, log string) {
	t.Helper()
	dir := t.TempDir()
	log = filepath.Join(dir, "calls.log")
	t.Setenv("FAKE_LOG", log)

	goBin = filepath.Join(dir, "go")
	require.NoError(t, os.WriteFile(goBin, []byte(`#!/bin/sh
case "$1" in
vet) echo "vet $*" >> "$FAKE_LOG"; exit 0 ;;
test) echo "$* E2E=$E2E" >> "$FAKE_LOG"; exit ${FAKE_TEST_EXIT:-0} ;;
esac
exit 2
`), 0755))

	gofmtBin = filepath.Join(dir, "gofmt")
	require.NoError(t, os.WriteFile(gofmtBin, []byte(`#!/bin/sh
echo "gofmt $*" >> "$FAKE_LOG"
if [ -n "$FAKE_DIRTY" ]; then echo "main.go"; fi
exit 0
`), 0755))
	return goBin, gofmtBin, log
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func newRunCmd(goBin, gofmtBin string, stderr *bytes.Buffer) *RunCmd {
	return &RunCmd{GoBin: goBin, GofmtBin: gofmtBin, Dir: ".", stderr: stderr}
}

func TestRunCmd_Passes(t *testing.T) {
	goBin, gofmtBin, log := fakeTools(t)
	var out, errOut bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	r := newRunCmd(goBin, gofmtBin, &errOut)
	require.NoError(t, r.Run(cli))

	calls := readLog(t, log)
	assert.Contains(t, calls, "gofmt -l .")
	assert.Contains(t, calls, "vet vet ./...")
	assert.Contains(t, calls, "test ./... E2E=no")
	assert.Contains(t, out.String(), "all tests passed")
}

func TestRunCmd_ExitCodeIsTheRunners(t *testing.T) {
	goBin, gofmtBin, _ := fakeTools(t)
	t.Setenv("FAKE_TEST_EXIT", "3")
	var out, errOut bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	err := newRunCmd(goBin, gofmtBin, &errOut).Run(cli)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestRunCmd_StyleFailureSkipsTests(t *testing.T) {
	goBin, gofmtBin, log := fakeTools(t)
	t.Setenv("FAKE_DIRTY", "1")
	var out, errOut bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	err := newRunCmd(goBin, gofmtBin, &errOut).Run(cli)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, errOut.String(), "main.go")
	assert.NotContains(t, readLog(t, log), "test ./...")
}

func TestRunCmd_NoChecksAndArgs(t *testing.T) {
	goBin, gofmtBin, log := fakeTools(t)
	var out, errOut bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	r := newRunCmd(goBin, gofmtBin, &errOut)
	r.NoChecks = true
	r.E2E = true
	r.Args = []string{"-run", "TestLogin Flow", "./users/..."}
	require.NoError(t, r.Run(cli))

	calls := readLog(t, log)
	assert.NotContains(t, calls, "gofmt")
	assert.Contains(t, calls, "test -run TestLogin Flow ./users/... E2E=yes")
	assert.Contains(t, out.String(), "+ "+goBin+" test -run 'TestLogin Flow' ./users/...")
}

func TestRunCmd_ServicesStoppedAfterTests(t *testing.T) {
	goBin, gofmtBin, _ := fakeTools(t)
	var out, errOut bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)
	cli.SetSettings(&config.Settings{Services: config.StringArray{"sleep 30"}})

	r := newRunCmd(goBin, gofmtBin, &errOut)
	r.NoChecks = true

	start := time.Now()
	require.NoError(t, r.Run(cli))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, out.String(), "+ sleep 30")
}

func TestRunCmd_InvalidServiceCommand(t *testing.T) {
	goBin, gofmtBin, _ := fakeTools(t)
	var out, errOut bytes.Buffer
	cli := &CLI{}
	cli.SetOutput(&out)

	r := newRunCmd(goBin, gofmtBin, &errOut)
	r.NoChecks = true
	r.Service = []string{`redis-server "unterminated`}
	err := r.Run(cli)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid service command")
}
