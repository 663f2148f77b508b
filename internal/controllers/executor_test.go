package controllers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/amaumene/plexschedule/internal/recurrence"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func annual(name string, due time.Time, years int) *models.Action {
	return &models.Action{
		ID:          1,
		Kind:        models.KindAnnual,
		Name:        name,
		Section:     "Movies",
		DueDate:     due,
		EveryXYears: years,
		Probability: 100,
	}
}

func series(name string, index int, due time.Time) *models.Action {
	return &models.Action{
		ID:           1,
		Kind:         models.KindSeriesDaily,
		Name:         name,
		Section:      "TV Shows",
		DueDate:      due,
		EpisodeIndex: index,
		EveryXDays:   7,
		Probability:  100,
	}
}

func TestExecuteCompletedIsNoop(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("Independence Day", "100")
	e := newTestExecutor(gw)

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	action.Completed = true

	for _, today := range []time.Time{day(2016, time.June, 30), day(2030, time.January, 1)} {
		result, err := e.Execute(context.Background(), today, action)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if result.Acted || result.Item != nil || result.Successor != nil {
			t.Errorf("Execute() = %+v, want no-op", result)
		}
	}
	if len(gw.marked) != 0 || len(gw.sections) != 0 {
		t.Errorf("gateway was called: marked=%v lookups=%v", gw.marked, gw.sections)
	}
}

func TestExecuteNotDue(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("Independence Day", "100")
	e := newTestExecutor(gw)

	action := annual("Independence Day", day(2024, time.June, 1), 1)
	result, err := e.Execute(context.Background(), day(2024, time.January, 1), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Acted || result.Item != nil {
		t.Errorf("Execute() = %+v, want not acted", result)
	}
	if action.Completed {
		t.Error("future action was completed")
	}
	if len(gw.sections) != 0 {
		t.Error("gateway was queried for a future action")
	}
}

func TestExecuteAnnualSpawnsSuccessor(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("V for Vendetta", "200")
	e := newTestExecutor(gw)

	action := annual("V for Vendetta", day(2016, time.November, 1), 2)
	result, err := e.Execute(context.Background(), day(2016, time.November, 3), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !result.Acted {
		t.Fatal("Execute() Acted = false, want true")
	}
	if result.Item == nil || result.Item.RatingKey != "200" {
		t.Errorf("Item = %+v, want rating key 200", result.Item)
	}
	if !action.Completed || action.CompletedAt == nil {
		t.Error("action not marked completed")
	}
	if diff := cmp.Diff([]string{"200"}, gw.marked); diff != "" {
		t.Errorf("marked mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Movies"}, gw.sections); diff != "" {
		t.Errorf("lookup sections mismatch (-want +got):\n%s", diff)
	}
	if !gw.sawDeadline {
		t.Error("gateway calls were made without a deadline")
	}

	want := &models.Action{
		Kind:        models.KindAnnual,
		Name:        "V for Vendetta",
		Section:     "Movies",
		DueDate:     day(2018, time.November, 1),
		EveryXYears: 2,
		Probability: 100,
	}
	if diff := cmp.Diff(want, result.Successor); diff != "" {
		t.Errorf("successor mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteAnnualKeepsLeapDay(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("Groundhog Day", "300")
	e := newTestExecutor(gw)

	result, err := e.Execute(context.Background(), day(2016, time.March, 1), annual("Groundhog Day", day(2016, time.February, 29), 1))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Successor == nil || !result.Successor.DueDate.Equal(day(2020, time.February, 29)) {
		t.Errorf("successor = %+v, want due 2020-02-29", result.Successor)
	}
}

func TestExecuteRecurrenceOverflow(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("Groundhog Day", "300")
	e := newTestExecutor(gw)
	e.calc = &recurrence.Calculator{MaxLeapSearch: 1}

	action := annual("Groundhog Day", day(2016, time.February, 29), 1)
	_, err := e.Execute(context.Background(), day(2016, time.March, 1), action)
	if !errors.Is(err, recurrence.ErrRecurrenceOverflow) {
		t.Fatalf("Execute() error = %v, want ErrRecurrenceOverflow", err)
	}
	if action.Completed {
		t.Error("action completed despite the recurrence failure")
	}
}

func TestExecuteItemNotFound(t *testing.T) {
	gw := newFakeGateway()
	e := newTestExecutor(gw)

	action := annual("Missing Movie", day(2016, time.June, 30), 1)
	result, err := e.Execute(context.Background(), day(2016, time.July, 1), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Acted || action.Completed {
		t.Errorf("Execute() = %+v, completed = %v, want skip", result, action.Completed)
	}
}

func TestExecuteLookupErrorSkips(t *testing.T) {
	gw := newFakeGateway()
	gw.lookupErr = errors.New("connection refused")
	e := newTestExecutor(gw)

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	result, err := e.Execute(context.Background(), day(2016, time.July, 1), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Acted || action.Completed {
		t.Error("lookup failure should skip the action")
	}
}

func TestExecuteLookupTimeoutFails(t *testing.T) {
	gw := newFakeGateway()
	gw.lookupErr = context.DeadlineExceeded
	e := newTestExecutor(gw)

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	_, err := e.Execute(context.Background(), day(2016, time.July, 1), action)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Execute() error = %v, want DeadlineExceeded", err)
	}
	if action.Completed {
		t.Error("action completed despite the timeout")
	}
}

func TestExecuteMarkUnwatchedFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("Independence Day", "100")
	serviceErr := errors.New("plex returned 500")
	gw.markErr["100"] = serviceErr
	e := newTestExecutor(gw)

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	result, err := e.Execute(context.Background(), day(2016, time.July, 1), action)
	if !errors.Is(err, serviceErr) {
		t.Fatalf("Execute() error = %v, want service error", err)
	}
	if result.Acted || result.Successor != nil {
		t.Errorf("Execute() = %+v, want empty result", result)
	}
	if action.Completed || action.CompletedAt != nil {
		t.Error("action mutated despite the failed mark")
	}
}

func TestExecuteProbabilityMiss(t *testing.T) {
	gw := newFakeGateway()
	gw.addMovie("Independence Day", "100")
	e := newTestExecutor(gw)
	e.roll = func() int { return 80 }

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	action.Probability = 50

	result, err := e.Execute(context.Background(), day(2016, time.July, 1), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Acted || !action.Completed {
		t.Error("missed roll should still complete the action")
	}
	if result.Item != nil {
		t.Errorf("Item = %+v, want nil on a missed roll", result.Item)
	}
	if len(gw.marked) != 0 {
		t.Errorf("marked = %v, want nothing on a missed roll", gw.marked)
	}
	if result.Successor == nil || result.Successor.Probability != 50 {
		t.Errorf("successor = %+v, want one carrying probability 50", result.Successor)
	}
}

func TestExecuteSeriesGate(t *testing.T) {
	gw := newFakeGateway()
	gw.addShow("Plebs", 3)
	e := newTestExecutor(gw)
	ctx := context.Background()

	action := series("Plebs", 1, day(2024, time.March, 1))

	result, err := e.Execute(ctx, day(2024, time.March, 2), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Acted || action.Completed || len(gw.marked) != 0 {
		t.Fatalf("gate did not block: result=%+v marked=%v", result, gw.marked)
	}

	gw.watched["Plebs-0"] = true

	result, err = e.Execute(ctx, day(2024, time.March, 2), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Acted || !action.Completed {
		t.Fatal("watched previous episode should unblock the action")
	}
	if diff := cmp.Diff([]string{"Plebs-1"}, gw.marked); diff != "" {
		t.Errorf("marked mismatch (-want +got):\n%s", diff)
	}

	want := &models.Action{
		Kind:         models.KindSeriesDaily,
		Name:         "Plebs",
		Section:      "TV Shows",
		DueDate:      day(2024, time.March, 8),
		EpisodeIndex: 2,
		EveryXDays:   7,
		Probability:  100,
	}
	if diff := cmp.Diff(want, result.Successor, cmpopts.IgnoreFields(models.Action{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Errorf("successor mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteSeriesFirstEpisodeIgnoresGate(t *testing.T) {
	gw := newFakeGateway()
	gw.addShow("Plebs", 2)
	e := newTestExecutor(gw)

	result, err := e.Execute(context.Background(), day(2024, time.March, 1), series("Plebs", 0, day(2024, time.March, 1)))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Acted || result.Successor == nil || result.Successor.EpisodeIndex != 1 {
		t.Errorf("Execute() = %+v, want acted with successor index 1", result)
	}
}

func TestExecuteSeriesChainEnds(t *testing.T) {
	gw := newFakeGateway()
	gw.addShow("Plebs", 2)
	gw.watched["Plebs-0"] = true
	e := newTestExecutor(gw)

	action := series("Plebs", 1, day(2024, time.March, 1))
	result, err := e.Execute(context.Background(), day(2024, time.March, 1), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Acted || !action.Completed {
		t.Fatal("last episode should execute")
	}
	if result.Successor != nil {
		t.Errorf("Successor = %+v, want nil after the last episode", result.Successor)
	}
}

func TestExecuteSeriesOutOfRangeIsSkipped(t *testing.T) {
	gw := newFakeGateway()
	gw.addShow("Plebs", 1)
	gw.watched["Plebs-0"] = true
	e := newTestExecutor(gw)

	action := series("Plebs", 1, day(2024, time.March, 1))
	result, err := e.Execute(context.Background(), day(2024, time.March, 1), action)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Acted || action.Completed {
		t.Error("out-of-range episode should be treated as not found")
	}
}

func TestExecuteSeriesSequenceError(t *testing.T) {
	gw := newFakeGateway()
	e := newTestExecutor(gw)

	action := series("Vanished Show", 3, day(2024, time.March, 1))
	_, err := e.Execute(context.Background(), day(2024, time.March, 1), action)
	if !errors.Is(err, ErrSequence) {
		t.Fatalf("Execute() error = %v, want ErrSequence", err)
	}
	if action.Completed {
		t.Error("action completed despite the sequence error")
	}
}

func TestExecuteUnknownKind(t *testing.T) {
	e := newTestExecutor(newFakeGateway())

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	action.Kind = "mark_unwatched"

	if _, err := e.Execute(context.Background(), day(2016, time.July, 1), action); err == nil {
		t.Fatal("Execute() error = nil, want unknown kind error")
	}
}

func TestExecuteLookupCancelledFails(t *testing.T) {
	gw := newFakeGateway()
	gw.lookupErr = context.Canceled
	e := newTestExecutor(gw)

	action := annual("Independence Day", day(2016, time.June, 30), 1)
	_, err := e.Execute(context.Background(), day(2016, time.July, 1), action)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if action.Completed {
		t.Error("action completed despite the cancellation")
	}
}
