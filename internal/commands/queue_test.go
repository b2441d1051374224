package commands

import (
	"fmt"
	"testing"

	"tacticom/internal/model"
	"tacticom/internal/tester"
)

func moveCmd(group string) model.Command {
	return model.MoveTo(group, []float64{100, 200, 0}, model.SpeedNormal, model.BehaviourAware, model.CombatYellow)
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(0, nil)
	for i := 0; i < 3; i++ {
		q.Enqueue(moveCmd(fmt.Sprintf("g%d", i)))
	}

	batch := q.GetBatch(0)
	tester.Len(t, batch, 3)
	for i, cmd := range batch {
		tester.Eq(t, cmd["group_id"].(string), fmt.Sprintf("g%d", i))
		tester.Eq(t, cmd["type"].(string), string(model.CmdMoveTo))
		tester.True(t, ValidateSerialized(cmd))
	}
}

func TestQueueBatchCap(t *testing.T) {
	q := NewQueue(2, nil)
	q.EnqueueBatch([]model.Command{moveCmd("a"), moveCmd("b"), moveCmd("c")})

	first := q.GetBatch(0)
	tester.Len(t, first, 2, "drain is capped at the configured batch size")
	tester.Eq(t, q.Size(), 1)

	second := q.GetBatch(0)
	tester.Len(t, second, 1)
	tester.Eq(t, second[0]["group_id"].(string), "c")
	tester.Len(t, q.GetBatch(0), 0)
}

func TestQueueExplicitMaxOverridesCap(t *testing.T) {
	q := NewQueue(2, nil)
	q.EnqueueBatch([]model.Command{moveCmd("a"), moveCmd("b"), moveCmd("c")})
	tester.Len(t, q.GetBatch(10), 3)
}

func TestQueueStats(t *testing.T) {
	q := NewQueue(0, nil)
	q.EnqueueBatch([]model.Command{moveCmd("a"), moveCmd("b")})
	q.Enqueue(moveCmd("c"))
	q.GetBatch(2)

	st := q.Stats()
	tester.Eq(t, st.Pending, 1)
	tester.Eq(t, st.TotalEnqueued, 3)
	tester.Eq(t, st.TotalDequeued, 2)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(0, nil)
	q.EnqueueBatch([]model.Command{moveCmd("a"), moveCmd("b")})
	q.Clear()
	tester.Eq(t, q.Size(), 0)

	st := q.Stats()
	tester.Eq(t, st.TotalEnqueued, 2, "clear drops pending but keeps counters")
	tester.Eq(t, st.TotalDequeued, 0)
}

func TestSerializeNilParams(t *testing.T) {
	out := Serialize(model.Command{Type: model.CmdMoveTo, GroupID: "g1"})
	params, ok := out["params"].(map[string]any)
	tester.True(t, ok)
	tester.Len(t, paramsKeys(params), 0)
}

func paramsKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
