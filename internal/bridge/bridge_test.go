package bridge

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/michaelbrown/execbridge/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.TempDir.Base = t.TempDir()
	return cfg
}

// start runs a bridge in the background. The returned function stops it and
// reports Run's error.
func start(t *testing.T, cfg *config.Config) (*Bridge, func() error) {
	t.Helper()
	b, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	var once bool
	var runErr error
	stop := func() error {
		if !once {
			once = true
			cancel()
			runErr = <-done
		}
		return runErr
	}
	t.Cleanup(func() { stop() })
	return b, stop
}

func post(t *testing.T, b *Bridge, fragment string) map[string]any {
	t.Helper()
	resp, err := http.Post("http://"+b.Addr()+"/", "text/plain", strings.NewReader(fragment))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRunServesAndCleansUp(t *testing.T) {
	cfg := testConfig(t)
	b, stop := start(t, cfg)

	renderDir := b.RenderDir()
	assert.DirExists(t, renderDir)
	assert.True(t, strings.HasPrefix(filepath.Base(renderDir), "execbridge-render-"))

	body := post(t, b, `bridge.Return("up")`)
	assert.Equal(t, "up", body["return"])

	// The configuration fragment already pointed rendering at the reserved
	// directory.
	body = post(t, b, `
p, err := bridge.Show("c'1")
bridge.Return(fmt.Sprint(p, "|", errors.Is(err, bridge.ErrNoPushTarget)))
`)
	parts := strings.SplitN(body["return"].(string), "|", 2)
	require.Len(t, parts, 2, body)
	assert.Equal(t, renderDir, filepath.Dir(parts[0]))
	assert.Equal(t, ".ly", filepath.Ext(parts[0]))
	// No front-end is connected, so the announcement fails but the file stays.
	assert.Equal(t, "true", parts[1])

	require.NoError(t, stop())
	_, err := os.Stat(renderDir)
	assert.True(t, os.IsNotExist(err), "render directory survived shutdown")
	http.DefaultClient.CloseIdleConnections()
}

func TestShutdownClosesWebSockets(t *testing.T) {
	b, stop := start(t, testConfig(t))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/websocket/", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`bridge.Return("hi")`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"return":"hi"`)

	require.NoError(t, stop())

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestNewFailsWhenPortTaken(t *testing.T) {
	cfg := testConfig(t)
	first, _ := start(t, cfg)

	taken := testConfig(t)
	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	taken.Server.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	_, err = New(taken, nil)
	require.Error(t, err)

	// The reserved directory was released with the failed bridge.
	entries, err := os.ReadDir(taken.TempDir.Base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewFailsWithoutRenderDirectory(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.TempDir.Base = filepath.Join(blocker, "below")

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render directory")
}

func TestNewFailsWithBadExtension(t *testing.T) {
	cfg := testConfig(t)
	cfg.Render.Extension = ""

	_, err := New(cfg, nil)
	require.Error(t, err)
}
