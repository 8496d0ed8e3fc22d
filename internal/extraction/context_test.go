package extraction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

var span = syntax.Span{StartLine: 3, StartCol: 7, EndLine: 3, EndCol: 14}

func TestIDsAreStable(t *testing.T) {
	a := NewContext("a.cs", semantic.NewTable(), NewMemorySink(), Options{})
	b := NewContext("a.cs", semantic.NewTable(), NewMemorySink(), Options{})
	c := NewContext("b.cs", semantic.NewTable(), NewMemorySink(), Options{})

	require.Equal(t, a.ID("case", span), b.ID("case", span))
	require.NotEqual(t, a.ID("case", span), a.ID("switch", span), "kind is part of the identity")
	require.NotEqual(t, a.ID("case", span), c.ID("case", span), "file is part of the identity")
	require.Equal(t, a.TypeID(semantic.Type{Name: "int"}), c.TypeID(semantic.Type{Name: "int"}), "types are shared across files")
}

func TestBatchCommitDeduplicates(t *testing.T) {
	sink := NewMemorySink()
	cx := NewContext("a.cs", semantic.NewTable(), sink, Options{})

	b1 := cx.Begin()
	loc := b1.Location(span)
	b1.Location(span)
	b1.Emit(types.PredStmt, "s1", types.StmtSwitch, "a.cs", 0, loc)
	require.NoError(t, b1.Commit())
	require.Equal(t, 2, sink.Len())

	b2 := cx.Begin()
	require.Equal(t, loc, b2.Location(span))
	require.NoError(t, b2.Commit())
	require.Equal(t, 2, sink.Len(), "shared location is emitted once")

	require.Error(t, b2.Commit(), "a batch commits at most once")
}

func TestBatchDiscardEmitsNothing(t *testing.T) {
	sink := NewMemorySink()
	cx := NewContext("a.cs", semantic.NewTable(), sink, Options{})

	b := cx.Begin()
	b.Location(span)
	b.Discard()
	require.Zero(t, sink.Len())
}

func TestFailedCommitIsRetryable(t *testing.T) {
	var calls int
	boom := errors.New("disk full")
	sink := SinkFunc(func(facts []types.Fact) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	})
	cx := NewContext("a.cs", semantic.NewTable(), sink, Options{})

	b := cx.Begin()
	b.Location(span)
	require.ErrorIs(t, b.Commit(), boom)

	again := cx.Begin()
	again.Location(span)
	require.NoError(t, again.Commit())
	require.Equal(t, 2, calls, "location must not be marked committed after a failed emit")
}

type countingObserver struct {
	cases, faults, facts int
}

func (o *countingObserver) CaseCreated(string) { o.cases++ }
func (o *countingObserver) Fault(string)       { o.faults++ }
func (o *countingObserver) FactsEmitted(n int) { o.facts += n }

func TestObserverAndFaults(t *testing.T) {
	obs := &countingObserver{}
	cx := NewContext("a.cs", semantic.NewTable(), NewMemorySink(), Options{Observer: obs})

	b := cx.Begin()
	b.Type(semantic.Type{Name: "int"})
	require.NoError(t, b.Commit())
	cx.CaseCreated(types.ShapeDefault)
	cx.Report(NewInternalError(UnhandledPatternShape, span, "%s", "relational_pattern"))

	require.Equal(t, 1, obs.cases)
	require.Equal(t, 1, obs.faults)
	require.Equal(t, 1, obs.facts)
	require.Len(t, cx.Faults(), 1)
}

func TestInternalErrorUnwrap(t *testing.T) {
	err := error(NewInternalError(UnhandledCaseShape, span, "label %s", "OtherLabel"))
	require.ErrorIs(t, err, ErrUnhandledCaseShape)
	require.NotErrorIs(t, err, ErrUnhandledPatternShape)

	ie, ok := AsInternal(err)
	require.True(t, ok)
	require.Equal(t, UnhandledCaseShape, ie.Kind)
	require.Contains(t, err.Error(), "label OtherLabel")
}
