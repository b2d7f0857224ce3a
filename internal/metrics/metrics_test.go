package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expected := []string{
		"scriptworker_messages_total",
		"scriptworker_dropped_messages_total",
		"scriptworker_script_errors_total",
		"scriptworker_active_workers",
		"scriptworker_dispatch_duration_seconds",
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestCounters(t *testing.T) {
	before := counterValue(t, "scriptworker_messages_total", "kind", KindLoad)
	Message(KindLoad)
	Message(KindLoad)
	if got := counterValue(t, "scriptworker_messages_total", "kind", KindLoad); got != before+2 {
		t.Errorf("messages_total{kind=load} = %v, want %v", got, before+2)
	}

	before = counterValue(t, "scriptworker_dropped_messages_total", "reason", DropStopping)
	Dropped(DropStopping, 3)
	Dropped(DropStopping, 0)
	if got := counterValue(t, "scriptworker_dropped_messages_total", "reason", DropStopping); got != before+3 {
		t.Errorf("dropped{reason=stopping} = %v, want %v", got, before+3)
	}

	before = counterValue(t, "scriptworker_script_errors_total", "phase", PhaseTimer)
	ScriptError(PhaseTimer)
	if got := counterValue(t, "scriptworker_script_errors_total", "phase", PhaseTimer); got != before+1 {
		t.Errorf("script_errors{phase=timer} = %v, want %v", got, before+1)
	}
}

func TestActiveWorkersGauge(t *testing.T) {
	activeWorkers.Set(0)
	WorkerAdded()
	WorkerAdded()
	WorkerAdded()
	WorkersRemoved(2)

	if val := gaugeValue(t, "scriptworker_active_workers"); val != 1 {
		t.Errorf("active_workers = %v, want 1", val)
	}
	activeWorkers.Set(0)
}

func TestDispatchObserved(t *testing.T) {
	ObserveDispatch(time.Now().Add(-5 * time.Millisecond))

	fam := family(t, "scriptworker_dispatch_duration_seconds")
	if fam.GetMetric()[0].GetHistogram().GetSampleCount() == 0 {
		t.Error("dispatch duration has no observations")
	}
}

func family(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

func counterValue(t *testing.T, name, label, value string) float64 {
	t.Helper()
	for _, m := range family(t, name).GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("%s{%s=%q} not found", name, label, value)
	return 0
}

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	return family(t, name).GetMetric()[0].GetGauge().GetValue()
}
