package emitter

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wavefrontHQ/newrelic/internal/domain"
)

var point = domain.MetricPoint{
	Name:      "Component/CPU/User Time",
	Value:     0.425,
	Timestamp: time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC),
	Source:    "web-1",
	Tags:      map[string]string{"env": "prod", "app": "billing"},
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Wavefront")
	require.NoError(t, err)
	assert.Equal(t, FormatWavefront, f)

	f, err = ParseFormat("opentsdb")
	require.NoError(t, err)
	assert.Equal(t, FormatOpenTSDB, f)

	_, err = ParseFormat("graphite")
	require.Error(t, err)
}

func TestFormatLine_Wavefront(t *testing.T) {
	got := FormatLine(FormatWavefront, point)
	want := `component.cpu.user_time 0.425 1462060800 source="web-1" "app"="billing" "env"="prod"`
	assert.Equal(t, want, got)
}

func TestFormatLine_OpenTSDB(t *testing.T) {
	got := FormatLine(FormatOpenTSDB, point)
	want := `put component.cpu.user_time 1462060800 0.425 host="web-1" "app"="billing" "env"="prod"`
	assert.Equal(t, want, got)
}

func TestFormatLine_NoTags(t *testing.T) {
	p := point
	p.Tags = nil
	got := FormatLine(FormatWavefront, p)
	assert.Equal(t, `component.cpu.user_time 0.425 1462060800 source="web-1"`, got)
}

// acceptLines returns the address of a listener that forwards every received
// line to the returned channel.
func acceptLines(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	lines := make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					lines <- sc.Text()
				}
			}(conn)
		}
	}()
	return ln.Addr().String(), lines
}

func recvLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case l := <-lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("no line received")
		return ""
	}
}

func TestSend_WritesLineOverTCP(t *testing.T) {
	addr, lines := acceptLines(t)

	e := New(addr, FormatWavefront, zaptest.NewLogger(t))
	defer func() { _ = e.Close() }()

	require.NoError(t, e.Send(point))
	assert.Equal(t, FormatLine(FormatWavefront, point), recvLine(t, lines))
}

func TestSend_RedialsAfterBrokenConnection(t *testing.T) {
	addr, lines := acceptLines(t)

	e := New(addr, FormatWavefront, zaptest.NewLogger(t))
	defer func() { _ = e.Close() }()

	require.NoError(t, e.Send(point))
	recvLine(t, lines)

	// Kill the connection under the emitter; the next Send must re-dial.
	e.mu.Lock()
	require.NoError(t, e.conn.Close())
	e.mu.Unlock()

	require.NoError(t, e.Send(point))
	assert.Equal(t, FormatLine(FormatWavefront, point), recvLine(t, lines))
}

func TestSend_DryRunDoesNotDial(t *testing.T) {
	e := New("127.0.0.1:1", FormatWavefront, zaptest.NewLogger(t), WithDryRun())
	require.NoError(t, e.Send(point))
	assert.Nil(t, e.conn)
}

func TestSend_DialFailure(t *testing.T) {
	e := New("127.0.0.1:1", FormatWavefront, zaptest.NewLogger(t))
	require.Error(t, e.Send(point))
}
