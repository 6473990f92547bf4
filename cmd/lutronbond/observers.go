package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/nerrad567/lutronbond/internal/api"
	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/controller"
	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
	"github.com/nerrad567/lutronbond/internal/infrastructure/influxdb"
	"github.com/nerrad567/lutronbond/internal/infrastructure/logging"
	"github.com/nerrad567/lutronbond/internal/infrastructure/metrics"
	"github.com/nerrad567/lutronbond/internal/infrastructure/mqtt"
	"github.com/nerrad567/lutronbond/internal/journal"
)

const defaultTokenTTL = 24 * time.Hour

// eventHandler accepts decoded events. *controller.Supervisor implements it.
type eventHandler interface {
	Handle(evt lutron.Event)
}

// simulateHandler injects frames published on lutronbond/simulate/<bridge>
// as if the named bridge had reported them. Frames for unconfigured bridges
// and frames that do not parse are logged and dropped.
func simulateHandler(h eventHandler, bridges lutron.Bridges, m *metrics.Metrics, log *logging.Logger) mqtt.MessageHandler {
	topics := mqtt.Topics{}
	return func(topic string, payload []byte) error {
		bridge, ok := topics.BridgeFromSimulate(topic)
		if !ok {
			log.Warn("ignoring simulate message", "topic", topic)
			return nil
		}
		if !slices.Contains(bridges, bridge) {
			log.Warn("ignoring simulated frame for unknown bridge", "bridge", bridge)
			return nil
		}

		evt, err := lutron.ParseEvent(payload, bridge)
		if err != nil {
			log.Warn("ignoring malformed simulated frame", "bridge", bridge, "error", err)
			return nil
		}

		m.ObserveSimulated(bridge)
		log.Info("injecting simulated event", "event", evt.String())
		h.Handle(evt)
		return nil
	}
}

func journalDispatch(d controller.Dispatch) journal.DispatchEntry {
	return journal.DispatchEntry{
		DispatchedAt: d.At,
		Bridge:       d.Event.Bridge,
		Device:       d.Event.Device,
		Component:    d.Event.Component.Name(),
		Action:       d.Event.Action.Name(),
		Integration:  d.Integration,
		Target:       d.Target,
		Handled:      d.Handled,
		Latency:      d.Latency,
	}
}

func influxDispatch(d controller.Dispatch) influxdb.Dispatch {
	return influxdb.Dispatch{
		Integration: d.Integration,
		Target:      d.Target,
		Bridge:      d.Event.Bridge,
		Device:      d.Event.Device,
		Handled:     d.Handled,
		Latency:     d.Latency,
	}
}

// sessionStats snapshots every session in the registry.
func sessionStats(r *lutron.Registry) func() []lutron.SessionStats {
	return func() []lutron.SessionStats {
		sessions := r.Sessions()
		out := make([]lutron.SessionStats, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, s.Stats())
		}
		return out
	}
}

// stateWriter records session state transitions.
type stateWriter interface {
	WriteSessionState(bridge string, state lutron.State)
}

// sampleSessions writes a session_state point whenever a session's state
// differs from the previous sample, until ctx is cancelled.
func sampleSessions(ctx context.Context, r *lutron.Registry, w stateWriter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[string]lutron.State)
	for {
		sampleOnce(r, w, last)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sampleOnce(r *lutron.Registry, w stateWriter, last map[string]lutron.State) {
	for _, s := range r.Sessions() {
		state := s.State()
		if prev, ok := last[s.Host()]; ok && prev == state {
			continue
		}
		last[s.Host()] = state
		w.WriteSessionState(s.Host(), state)
	}
}

// issueToken implements the token subcommand: it prints a signed API bearer
// token for the given subject.
func issueToken(args []string, configPath string, w io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing token flags: %w", err)
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lutronbond token [-ttl 24h] <subject>")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Security.JWT.Enabled {
		return errors.New("security.jwt is not enabled")
	}

	token, err := api.IssueToken(cfg.Security.JWT, fs.Arg(0), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
