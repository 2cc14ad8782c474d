// Package emitter writes metric points to a proxy over TCP in either the
// Wavefront or the OpenTSDB line protocol. One connection is shared by all
// workers and re-dialed on write failure.
package emitter

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/domain"
	"github.com/wavefrontHQ/newrelic/internal/misc"
	"github.com/wavefrontHQ/newrelic/internal/obs"
	"github.com/wavefrontHQ/newrelic/internal/ports"
)

// Format selects the line protocol.
type Format string

const (
	FormatWavefront Format = "wavefront"
	FormatOpenTSDB  Format = "opentsdb"
)

// ParseFormat validates a config string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatWavefront:
		return FormatWavefront, nil
	case FormatOpenTSDB:
		return FormatOpenTSDB, nil
	default:
		return "", fmt.Errorf("unknown emitter format %q", s)
	}
}

const dialTimeout = 5 * time.Second

// Emitter sends formatted lines to a proxy. Safe for concurrent use.
type Emitter struct {
	addr   string
	format Format
	dryRun bool
	log    *zap.Logger

	dial func(addr string) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

var _ ports.Sender = (*Emitter)(nil)

// Option configures an Emitter.
type Option func(*Emitter)

// WithDryRun logs lines instead of sending them.
func WithDryRun() Option {
	return func(e *Emitter) { e.dryRun = true }
}

// New returns an emitter targeting addr. No connection is made until the
// first Send.
func New(addr string, format Format, log *zap.Logger, opts ...Option) *Emitter {
	e := &Emitter{
		addr:   addr,
		format: format,
		log:    log,
		dial: func(addr string) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, dialTimeout)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send formats and writes one point. A failed write re-dials once before
// giving up, so a proxy restart costs a single point at most.
func (e *Emitter) Send(p domain.MetricPoint) error {
	line := FormatLine(e.format, p)

	if e.dryRun {
		e.log.Info("dry run", zap.String("line", line))
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.write(line); err != nil {
		e.reset()
		if err = e.write(line); err != nil {
			return fmt.Errorf("send %s: %w", p.Name, err)
		}
	}
	obs.PointsSent.Inc()
	return nil
}

// Close closes the proxy connection.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

func (e *Emitter) write(line string) error {
	if e.conn == nil {
		conn, err := e.dial(e.addr)
		if err != nil {
			return err
		}
		e.conn = conn
	}
	_, err := e.conn.Write([]byte(line + "\n"))
	return err
}

func (e *Emitter) reset() {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}

// FormatLine renders one point in the given protocol.
func FormatLine(f Format, p domain.MetricPoint) string {
	name := misc.SanitizeName(p.Name)
	value := strconv.FormatFloat(p.Value, 'f', -1, 64)
	ts := p.Timestamp.Unix()

	switch f {
	case FormatOpenTSDB:
		// put <name> <ts> <value> host="<source>" <tags>
		var b strings.Builder
		fmt.Fprintf(&b, "put %s %d %s host=%q", name, ts, value, p.Source)
		appendTags(&b, p.Tags)
		return b.String()
	default:
		// <name> <value> <ts> source="<source>" <tags>
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s %d source=%q", name, value, ts, p.Source)
		appendTags(&b, p.Tags)
		return b.String()
	}
}

func appendTags(b *strings.Builder, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %q=%q", k, tags[k])
	}
}
