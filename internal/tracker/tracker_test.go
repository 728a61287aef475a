package tracker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
)

const player int64 = 1

// runModules runs specs over events and fails the test on fatal errors.
func runModules(t *testing.T, info engine.RunInfo, events []event.Event, specs ...engine.Spec) *engine.Result {
	t.Helper()
	reg := engine.NewRegistry()
	reg.MustRegister(specs...)

	eng, err := engine.New(reg, nil,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("test-run")),
	)
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), info, events)
	require.NoError(t, err)
	return res
}

func mustInstance[T any](t *testing.T, res *engine.Result, name string) T {
	t.Helper()
	m, ok := engine.Instance[T](res, name)
	require.True(t, ok, "module %s unavailable", name)
	return m
}

func cast(ts, ability int64) event.Event {
	return event.Event{Timestamp: ts, Kind: event.KindCast, SourceID: player, TargetID: player, AbilityID: ability}
}

func buffEvent(ts int64, kind event.Kind, ability int64, stacks int) event.Event {
	return event.Event{Timestamp: ts, Kind: kind, SourceID: player, TargetID: player, AbilityID: ability, Stacks: stacks}
}

// fixedHaste is a stand-in haste module.
type fixedHaste float64

func (h fixedHaste) Haste(int64) float64 { return float64(h) }

func hasteSpec(h float64) engine.Spec {
	return engine.Spec{
		Name: "haste",
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return fixedHaste(h), nil
		},
	}
}
