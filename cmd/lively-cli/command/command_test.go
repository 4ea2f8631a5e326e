package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"livelyclient/internal/auth"
	"livelyclient/internal/devrealm"
)

// resetFlags puts every flag of the command tree back to its default so
// runs in one process do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"LIVELY_REALM", "LIVELY_PATH", "LIVELY_NAMESPACE", "LIVELY_TOKEN",
		"LIVELY_DEBUG", "LIVELY_DISCONNECT_ON_ACK", "REDIS_URL", "DATABASE_URL", "DEV_REALM_SECRET"} {
		t.Setenv(k, "")
	}
	t.Setenv("LIVELY_ACK_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "error")

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func startRealm(t *testing.T, secret string) (*devrealm.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	realm := devrealm.NewServer(devrealm.Config{Secret: secret}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(realm.Engine())
	t.Cleanup(func() {
		realm.Close()
		ts.Close()
	})
	return realm, ts.URL
}

func TestSend_JSONPayload(t *testing.T) {
	keyring.MockInit()
	realm, url := startRealm(t, "")

	out, err := run(t, "", "send", "--realm", url, "--room", "3", "--json", `{"b":1,"a":[true,null]}`)
	require.NoError(t, err)

	assert.Contains(t, out, "Client Connected")
	assert.Contains(t, out, "Sent message to room 3")
	assert.Contains(t, out, "Message has been received by server.")
	assert.Contains(t, out, "1 message(s) delivered to room 3")
	assert.Contains(t, out, "Client Disconnected")

	msgs := realm.Hub().Room("3").Messages()
	require.Len(t, msgs, 1)
	env := msgs[0].Payload.(map[string]any)
	assert.Equal(t, "incorrect", env["token"])
	data := env["data"].(map[string]any)
	assert.Equal(t, map[string]any{"b": float64(1), "a": []any{true, nil}}, data["broadcast"].(map[string]any)["payload"])
}

func TestSend_Stdin(t *testing.T) {
	keyring.MockInit()
	realm, url := startRealm(t, "")

	out, err := run(t, "one\n\n  two  \n", "send", "--realm", url, "--room", "s", "--stdin", "--sender", "bot", "--n", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "2 message(s) delivered to room s")

	msgs := realm.Hub().Room("s").Messages()
	require.Len(t, msgs, 2)
	first := msgs[0].Payload.(map[string]any)
	assert.Equal(t, "bot", first["sender"])
	assert.Equal(t, float64(7), first["n"])
	assert.Equal(t, "one", first["data"].(map[string]any)["broadcast"].(map[string]any)["payload"])
}

func TestSend_UsesKeyringToken(t *testing.T) {
	keyring.MockInit()
	realm, url := startRealm(t, "s3cret")
	signed, err := auth.SignDevToken("s3cret", "andi", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = run(t, "", "auth", "login", "--token", signed)
	require.NoError(t, err)

	_, err = run(t, "", "send", "--realm", url, "--room", "k", "hello")
	require.NoError(t, err)

	msgs := realm.Hub().Room("k").Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "andi", msgs[0].User)
}

func TestSend_RejectedToken(t *testing.T) {
	keyring.MockInit()
	_, url := startRealm(t, "s3cret")

	_, err := run(t, "", "send", "--realm", url, "--room", "k", "hello")
	assert.Error(t, err)
}

func TestSend_ArgumentErrors(t *testing.T) {
	keyring.MockInit()

	_, err := run(t, "", "send", "--room", "3")
	assert.ErrorContains(t, err, "payload argument or --stdin")

	_, err = run(t, "x", "send", "--room", "3", "--stdin", "hi")
	assert.ErrorContains(t, err, "not both")

	_, err = run(t, "", "send", "--room", "3", "--json", "{broken")
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestAuth_LoginStatusLogout(t *testing.T) {
	keyring.MockInit()

	out, err := run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	_, err = run(t, "", "auth", "login", "--token", "incorrect")
	assert.ErrorContains(t, err, "placeholder")

	_, err = run(t, "", "auth", "login", "--token", "opaque-realm-token")
	require.NoError(t, err)

	out, err = run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "opaq…oken")

	out, err = run(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Token removed.")

	out, err = run(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "No token stored.")
}

func TestToken_SignAndInspect(t *testing.T) {
	keyring.MockInit()

	signed, err := run(t, "", "token", "sign", "--secret", "k", "--user", "andi")
	require.NoError(t, err)
	signed = strings.TrimSpace(signed)

	sub, err := auth.VerifyHS256(signed, "k")
	require.NoError(t, err)
	assert.Equal(t, "andi", sub)

	out, err := run(t, "", "token", "inspect", signed)
	require.NoError(t, err)
	assert.Contains(t, out, "Algorithm: HS256")
	assert.Contains(t, out, "Username:  andi")

	_, err = run(t, "", "token", "sign")
	assert.ErrorContains(t, err, "DEV_REALM_SECRET")
}

func TestHistoryAndLog_RequireSinks(t *testing.T) {
	keyring.MockInit()

	_, err := run(t, "", "history")
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = run(t, "", "log")
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestParsePayload(t *testing.T) {
	v, err := parsePayload(`{"id":12345678901234567890}`, true)
	require.NoError(t, err)
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"id":12345678901234567890}`, string(b))

	v, err = parsePayload(`{"a":1}`, false)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	_, err = parsePayload(`1 2`, true)
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "********", maskToken("short"))
	assert.Equal(t, "abcd…wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}
