// Package system implements a metrics source that samples host CPU, memory,
// and disk usage via gopsutil and emits one point per reading.
package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/domain"
	"github.com/wavefrontHQ/newrelic/internal/ports"
)

// Source samples the local host. Each sampler family is its own work item so
// a hung disk stat cannot block the CPU reading.
type Source struct {
	sender ports.Sender
	host   string
	paths  []string
	log    *zap.Logger
}

var _ ports.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithHost overrides the reported source host name.
func WithHost(host string) Option {
	return func(s *Source) { s.host = host }
}

// WithDiskPaths overrides the mount points sampled for disk usage.
func WithDiskPaths(paths ...string) Option {
	return func(s *Source) { s.paths = paths }
}

// New returns a host source emitting through sender.
func New(sender ports.Sender, log *zap.Logger, opts ...Option) *Source {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	s := &Source{
		sender: sender,
		host:   host,
		paths:  []string{"/"},
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements ports.Source.
func (s *Source) Name() string { return "system" }

// Items returns one work item per sampler family. The range end is used as
// the point timestamp so replayed chunks produce identical points.
func (s *Source) Items(_ context.Context, r domain.TimeRange) ([]domain.WorkItem, error) {
	ts := r.End
	return []domain.WorkItem{
		{Name: "system.cpu", Do: func(ctx context.Context) error { return s.sampleCPU(ctx, ts) }},
		{Name: "system.mem", Do: func(ctx context.Context) error { return s.sampleMem(ctx, ts) }},
		{Name: "system.disk", Do: func(ctx context.Context) error { return s.sampleDisk(ctx, ts) }},
	}, nil
}

func (s *Source) sampleCPU(ctx context.Context, ts time.Time) error {
	pct, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return fmt.Errorf("cpu percent: %w", err)
	}
	for i, p := range pct {
		if err := s.emit(ts, fmt.Sprintf("system.cpu.utilization.cpu%d", i+1), p, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) sampleMem(ctx context.Context, ts time.Time) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("virtual memory: %w", err)
	}
	for name, v := range map[string]float64{
		"system.mem.total":        float64(vm.Total),
		"system.mem.free":         float64(vm.Free),
		"system.mem.used_percent": vm.UsedPercent,
	} {
		if err := s.emit(ts, name, v, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) sampleDisk(ctx context.Context, ts time.Time) error {
	for _, path := range s.paths {
		du, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return fmt.Errorf("disk usage %s: %w", path, err)
		}
		tags := map[string]string{"path": path}
		if err := s.emit(ts, "system.disk.used_percent", du.UsedPercent, tags); err != nil {
			return err
		}
		if err := s.emit(ts, "system.disk.free", float64(du.Free), tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) emit(ts time.Time, name string, value float64, tags map[string]string) error {
	return s.sender.Send(domain.MetricPoint{
		Name:      name,
		Value:     value,
		Timestamp: ts,
		Source:    s.host,
		Tags:      tags,
	})
}
