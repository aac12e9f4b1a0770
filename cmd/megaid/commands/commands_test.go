package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megalab/megaid/internal/keystore"
	"github.com/megalab/megaid/internal/printer"
	"github.com/megalab/megaid/pkg/megaid"
	"github.com/megalab/megaid/pkg/snowflake"
)

// Deterministic fixture keys; never use derived keys outside tests.
var (
	fixtureKeys = megaid.DeriveKeys("cli-test-secret")
	otherKeys   = megaid.DeriveKeys("another-secret")
)

func keyEnv(keys megaid.Keys) []string {
	return []string{
		keystore.AdminKeyVar + "=" + keys.Admin,
		keystore.SharedKeyVar + "=" + keys.Shared,
	}
}

type result struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the command tree with the given process environment. A
// temporary .env path is always passed so generated keys never land in the
// package directory.
func runCLI(t *testing.T, env []string, args ...string) result {
	t.Helper()

	prevNoColor, prevEnviron := color.NoColor, environ
	color.NoColor = true
	environ = func() []string { return env }
	t.Cleanup(func() {
		color.NoColor = prevNoColor
		environ = prevEnviron
		printer.SetOutput(nil, nil)
	})

	if !containsFlag(args, "--env-file") {
		args = append(args, "--env-file", filepath.Join(t.TempDir(), ".env"))
	}

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func containsFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			return true
		}
	}
	return false
}

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func idFrom(t *testing.T, out, prefix string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(out, "✓ "+prefix), "unexpected output: %q", out)
	return strings.TrimSpace(strings.TrimPrefix(out, "✓ "+prefix))
}

func decodeView(t *testing.T, env []string, id string) megaid.MetadataView {
	t.Helper()
	res := runCLI(t, env, "decode", id, "--output", "json")
	require.NoError(t, res.err, res.stderr)
	var view megaid.MetadataView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
	return view
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	res := runCLI(t, nil)
	assert.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Usage:")
	assert.Contains(t, res.stdout, "megaid")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	res := runCLI(t, nil, "--unknown-flag", "value")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown flag")
}

func TestRootCommand_Version(t *testing.T) {
	res := runCLI(t, nil, "--version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "dev (commit: none, built: unknown)")
}

func TestCreateAndDecode(t *testing.T) {
	env := keyEnv(fixtureKeys)

	res := runCLI(t, env, "create", "--set", "status=draft", "--set", "retries=2")
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")
	require.Len(t, strings.Split(id, ":"), 3)

	view := decodeView(t, env, id)
	assert.Equal(t, megaid.DefaultMetadata(), view.ImmutableData)
	assert.Equal(t, map[string]any{"status": "draft", "retries": float64(2)}, view.MutableData)
	assert.Equal(t, view.DateCreated, view.DateUpdated)
}

func TestCreateWithMetadataFiles(t *testing.T) {
	env := keyEnv(fixtureKeys)
	dir := t.TempDir()
	immutable := filepath.Join(dir, "immutable.yml")
	mutable := filepath.Join(dir, "mutable.json")
	require.NoError(t, os.WriteFile(immutable, []byte("owner: alice\nregion: eu\n"), 0644))
	require.NoError(t, os.WriteFile(mutable, []byte(`{"status": "draft"}`), 0644))

	res := runCLI(t, env, "create", "--immutable", immutable, "--mutable", mutable, "--set", "status=live")
	require.NoError(t, res.err, res.stderr)

	view := decodeView(t, env, idFrom(t, res.stdout, "New ID: "))
	assert.Equal(t, map[string]any{"owner": "alice", "region": "eu"}, view.ImmutableData)
	assert.Equal(t, map[string]any{"status": "live"}, view.MutableData)
}

func TestCreateUTC(t *testing.T) {
	env := keyEnv(fixtureKeys)
	fixClock(t, time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC))

	t.Run("timestamps only", func(t *testing.T) {
		res := runCLI(t, env, "create-utc")
		require.NoError(t, res.err, res.stderr)

		view := decodeView(t, env, idFrom(t, res.stdout, "New UTC-based ID: "))
		assert.Equal(t, map[string]any{"created_at": "2025-03-01T12:30:00+00:00"}, view.ImmutableData)
		assert.Equal(t, map[string]any{"last_updated": "2025-03-01T12:30:00+00:00"}, view.MutableData)
		assert.Equal(t, time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC), view.CreatedAt())
	})

	t.Run("keeps microseconds", func(t *testing.T) {
		fixClock(t, time.Date(2025, 3, 1, 12, 30, 0, 123_456_789, time.UTC))

		res := runCLI(t, env, "create-utc")
		require.NoError(t, res.err, res.stderr)

		view := decodeView(t, env, idFrom(t, res.stdout, "New UTC-based ID: "))
		assert.Equal(t, "2025-03-01T12:30:00.123456+00:00", view.ImmutableData["created_at"])
		assert.Equal(t, "2025-03-01T12:30:00.123456+00:00", view.MutableData["last_updated"])
	})

	t.Run("merges YAML file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "order.yml")
		require.NoError(t, os.WriteFile(path, []byte("immutable_data:\n  order: A-1\nmutable_data:\n  status: paid\n"), 0644))

		res := runCLI(t, env, "create-utc", path)
		require.NoError(t, res.err, res.stderr)

		view := decodeView(t, env, idFrom(t, res.stdout, "New UTC-based ID: "))
		assert.Equal(t, map[string]any{"created_at": "2025-03-01T12:30:00+00:00", "order": "A-1"}, view.ImmutableData)
		assert.Equal(t, map[string]any{"last_updated": "2025-03-01T12:30:00+00:00", "status": "paid"}, view.MutableData)
	})

	t.Run("rejects non-mapping file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "list.yml")
		require.NoError(t, os.WriteFile(path, []byte("- a\n"), 0644))

		res := runCLI(t, env, "create-utc", path)
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "invalid metadata file")
	})
}

func TestCreateCustom(t *testing.T) {
	env := keyEnv(fixtureKeys)

	res := runCLI(t, env, "create-custom", "--timestamp", "2024-01-31:09:30")
	require.NoError(t, res.err, res.stderr)
	view := decodeView(t, env, idFrom(t, res.stdout, "New custom time-based ID: "))
	assert.Equal(t, "2024-01-31T09:30:00+00:00", view.ImmutableData["created_at"])
	assert.Contains(t, view.MutableData, "last_updated")

	res = runCLI(t, env, "create-custom", "--timestamp", "2024-01-31")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "invalid timestamp")
	assert.Contains(t, res.stderr, "YYYY-MM-DD:HH:MM")

	res = runCLI(t, env, "create-custom")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "timestamp")
}

func TestUpdate(t *testing.T) {
	env := keyEnv(fixtureKeys)
	fixClock(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	res := runCLI(t, env, "create", "--set", "status=draft", "--set", "owner=bob")
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")

	fixClock(t, time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC))
	patch := filepath.Join(t.TempDir(), "patch.yml")
	require.NoError(t, os.WriteFile(patch, []byte("status: review\nreviewer: carol\n"), 0644))

	res = runCLI(t, env, "update", id, "--file", patch, "--set", "status=shipped")
	require.NoError(t, res.err, res.stderr)
	updated := idFrom(t, res.stdout, "Updated ID: ")

	before, after := strings.Split(id, ":"), strings.Split(updated, ":")
	assert.Equal(t, before[:2], after[:2])
	assert.NotEqual(t, before[2], after[2])

	view := decodeView(t, env, updated)
	assert.Equal(t, map[string]any{"status": "shipped", "owner": "bob", "reviewer": "carol"}, view.MutableData)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC), view.UpdatedAt())
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), view.CreatedAt())
}

func TestUpdateNeedsOnlySharedKey(t *testing.T) {
	res := runCLI(t, keyEnv(fixtureKeys), "create")
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")

	sharedOnly := keyEnv(megaid.Keys{Admin: otherKeys.Admin, Shared: fixtureKeys.Shared})
	res = runCLI(t, sharedOnly, "update", id, "--set", "status=done")
	require.NoError(t, res.err, res.stderr)

	view := decodeView(t, keyEnv(fixtureKeys), idFrom(t, res.stdout, "Updated ID: "))
	assert.Equal(t, "done", view.MutableData["status"])
}

func TestUpdateRejectsForeignID(t *testing.T) {
	res := runCLI(t, keyEnv(fixtureKeys), "create")
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")

	res = runCLI(t, keyEnv(otherKeys), "update", id, "--set", "status=done")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "failed to update ID")
	assert.Contains(t, res.stderr, "signed with different keys")
}

func TestDecodeSnowflake(t *testing.T) {
	codec, err := snowflake.NewCodec(snowflake.Bits52)
	require.NoError(t, err)
	id := codec.Pack(1700000000123, 5)

	res := runCLI(t, nil, "decode", megaid.FormatID(id), "--bits", "52")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Snowflake ID Analysis:")
	assert.Contains(t, res.stdout, "Timestamp:\n2023-11-14T22:13:20.123Z\n")
	assert.Contains(t, res.stdout, "Random Bits:\n5\n")

	res = runCLI(t, nil, "decode", "12ab")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "invalid snowflake ID")
}

func TestDecodeText(t *testing.T) {
	env := keyEnv(fixtureKeys)
	res := runCLI(t, env, "create", "--set", "status=draft")
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")

	res = runCLI(t, env, "decode", id)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Decoded Compound ID Data:")
	assert.Contains(t, res.stdout, "\"status\": \"draft\"")
	assert.Contains(t, res.stdout, "\"created_by\": \"MEGAID\"")
}

func TestDecodeErrors(t *testing.T) {
	env := keyEnv(fixtureKeys)

	res := runCLI(t, env, "decode", "123:abc")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "failed to decode compound ID")
	assert.Contains(t, res.stderr, "<snowflake>:<immutable>:<mutable>")

	res = runCLI(t, env, "decode", "123", "--output", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "invalid output format")
}

func TestVerify(t *testing.T) {
	env := keyEnv(fixtureKeys)
	res := runCLI(t, env, "create")
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")

	t.Run("valid", func(t *testing.T) {
		res := runCLI(t, env, "verify", id)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "✓ immutable block valid")
		assert.Contains(t, res.stdout, "✓ mutable block valid")
	})

	t.Run("wrong admin key", func(t *testing.T) {
		res := runCLI(t, keyEnv(megaid.Keys{Admin: otherKeys.Admin, Shared: fixtureKeys.Shared}), "verify", id)
		require.Error(t, res.err)
		assert.Contains(t, res.stdout, "✗ immutable block invalid")
		assert.Contains(t, res.stdout, "✓ mutable block valid")
	})

	t.Run("swapped snowflake", func(t *testing.T) {
		parts := strings.Split(id, ":")
		parts[0] = "1"
		res := runCLI(t, env, "verify", strings.Join(parts, ":"), "--output", "json")
		require.Error(t, res.err)

		var got struct {
			Blocks []struct {
				Block string `json:"block"`
				Valid bool   `json:"valid"`
			} `json:"blocks"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		require.Len(t, got.Blocks, 2)
		assert.False(t, got.Blocks[0].Valid)
		assert.True(t, got.Blocks[1].Valid)
	})
}

func TestKeygen(t *testing.T) {
	t.Run("random", func(t *testing.T) {
		res := runCLI(t, nil, "keygen")
		require.NoError(t, res.err)
		lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], keystore.AdminKeyVar+"="))
		assert.True(t, strings.HasPrefix(lines[1], keystore.SharedKeyVar+"="))
		assert.Empty(t, res.stderr)
	})

	t.Run("deterministic", func(t *testing.T) {
		res := runCLI(t, nil, "keygen", "--admin-secret", "cli-test-secret")
		require.NoError(t, res.err)
		assert.Equal(t,
			keystore.AdminKeyVar+"="+fixtureKeys.Admin+"\n"+keystore.SharedKeyVar+"="+fixtureKeys.Shared+"\n",
			res.stdout)
		assert.Contains(t, res.stderr, "testing only")
	})

	t.Run("save refuses to overwrite", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), ".env")

		res := runCLI(t, nil, "keygen", "--save", "--env-file", envFile)
		require.NoError(t, res.err, res.stderr)
		assert.Contains(t, res.stdout, "→ Saving key pair to env file "+envFile+"\n")
		assert.Contains(t, res.stdout, "Saved key pair to env file "+envFile)

		keys, err := keystore.NewEnvStore(envFile).Load(context.Background())
		require.NoError(t, err)
		assert.NoError(t, keys.Validate())

		res = runCLI(t, nil, "keygen", "--save", "--env-file", envFile)
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "keys already exist")
	})
}

func TestKeysGeneratedOnFirstUse(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	res := runCLI(t, nil, "create", "--env-file", envFile)
	require.NoError(t, res.err, res.stderr)
	id := idFrom(t, res.stdout, "New ID: ")

	contents, err := os.ReadFile(envFile)
	require.NoError(t, err)
	assert.Contains(t, string(contents), keystore.AdminKeyVar)

	res = runCLI(t, nil, "decode", id, "--env-file", envFile)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Decoded Compound ID Data:")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "megaid.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`version: "1.0"
bit_size: 32
default_metadata:
  created_by: billing
keys:
  generate: false
`), 0644))

	t.Run("applies bit size and defaults", func(t *testing.T) {
		env := keyEnv(fixtureKeys)
		res := runCLI(t, env, "create", "--config", cfgPath)
		require.NoError(t, res.err, res.stderr)
		id := idFrom(t, res.stdout, "New ID: ")

		sf, err := snowflake.Parse(strings.Split(id, ":")[0])
		require.NoError(t, err)
		assert.Less(t, sf, uint64(1)<<32)

		res = runCLI(t, env, "decode", id, "--config", cfgPath, "--output", "json")
		require.NoError(t, res.err, res.stderr)
		var view megaid.MetadataView
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
		assert.Equal(t, map[string]any{"created_by": "billing"}, view.ImmutableData)
	})

	t.Run("generation disabled", func(t *testing.T) {
		res := runCLI(t, nil, "create", "--config", cfgPath)
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "failed to initialize MEGAID")
		assert.Contains(t, res.stderr, "no keys found")
	})

	t.Run("environment overrides file", func(t *testing.T) {
		env := append(keyEnv(fixtureKeys), "MEGAID_BIT_SIZE=52")
		res := runCLI(t, env, "create", "--config", cfgPath)
		require.NoError(t, res.err, res.stderr)
		sf, err := snowflake.Parse(strings.Split(idFrom(t, res.stdout, "New ID: "), ":")[0])
		require.NoError(t, err)
		assert.Less(t, sf, uint64(1)<<52)
	})

	t.Run("explicit missing file", func(t *testing.T) {
		res := runCLI(t, nil, "create", "--config", filepath.Join(dir, "missing.yml"))
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "failed to load configuration")
	})

	t.Run("invalid bits flag", func(t *testing.T) {
		res := runCLI(t, keyEnv(fixtureKeys), "create", "--bits", "48")
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "invalid bit_size: 48")
	})
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, nil, "init", "--dir", dir)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Successfully initialized MEGAID project!")
	assert.Contains(t, res.stdout, "✓ megaid.yml")
	assert.FileExists(t, filepath.Join(dir, "megaid.yml"))

	res = runCLI(t, nil, "init", "--dir", dir)
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "project already initialized")

	res = runCLI(t, nil, "init", "--dir", dir, "--force")
	require.NoError(t, res.err, res.stderr)

	res = runCLI(t, keyEnv(fixtureKeys), "create", "--config", filepath.Join(dir, "megaid.yml"))
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "New ID: ")
}

func TestInitReportsWriteFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	res := runCLI(t, nil, "init", "--dir", dir)
	require.Error(t, res.err)
	assert.Equal(t, "initialization failed", res.err.Error())
	assert.Contains(t, res.stdout, "→ Writing "+filepath.Join(dir, "megaid.yml"))
	assert.Contains(t, res.stderr, "initialization failed\n\n")
	assert.Contains(t, res.stderr, "failed to write")
	assert.Contains(t, res.stderr, "Directory: "+dir)
	assert.NoFileExists(t, filepath.Join(dir, "megaid.yml"))
}
