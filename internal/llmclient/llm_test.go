package llmclient

import (
	"errors"
	"testing"

	"tacticom/internal/tester"
)

func TestParseResponsePlainJSON(t *testing.T) {
	resp, err := ParseResponse(`{"orders": [{"type": "move_to", "group_id": "alpha"}], "commentary": "advance"}`)
	tester.NoErr(t, err)
	tester.Len(t, resp.Orders, 1)
	tester.Eq(t, resp.Commentary, "advance")
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"orders\": []}\n```"
	resp, err := ParseResponse(raw)
	tester.NoErr(t, err)
	tester.Len(t, resp.Orders, 0)
	tester.Eq(t, resp.Raw, raw, "raw keeps the fence for logging")
}

func TestParseResponseBareFence(t *testing.T) {
	resp, err := ParseResponse("```\n{\"orders\": [1, 2]}\n```")
	tester.NoErr(t, err)
	tester.Len(t, resp.Orders, 2)
}

func TestParseResponseRejectsNonJSON(t *testing.T) {
	_, err := ParseResponse("I will now advance my forces to the ridge.")
	tester.True(t, errors.Is(err, ErrInvalidJSON))
}

func TestParseResponseRejectsMissingOrders(t *testing.T) {
	_, err := ParseResponse(`{"commentary": "nothing to do"}`)
	tester.True(t, errors.Is(err, ErrInvalidJSON))
}

func TestParseResponseRejectsNonArrayOrders(t *testing.T) {
	_, err := ParseResponse(`{"orders": "move everyone north"}`)
	tester.True(t, errors.Is(err, ErrInvalidJSON))
}

func TestParseResponseOrderSummaryArray(t *testing.T) {
	resp, err := ParseResponse(`{
		"orders": [{"type": "move_to", "group_id": "alpha", "position": [600, 600, 0]}],
		"commentary": "push alpha east",
		"order_summary": ["alpha advances to the river"]
	}`)
	tester.NoErr(t, err)
	tester.Len(t, resp.OrderSummary, 1)
	tester.Eq(t, resp.Summary(5), "alpha advances to the river",
		"the model's own summary must survive, not the raw envelope")
}

func TestParseResponseOrderSummaryString(t *testing.T) {
	resp, err := ParseResponse(`{"orders": [], "order_summary": "alpha holds\n\n  bravo patrols  "}`)
	tester.NoErr(t, err)
	tester.Eq(t, len(resp.OrderSummary), 2)
	tester.Eq(t, resp.OrderSummary[0], "alpha holds")
	tester.Eq(t, resp.OrderSummary[1], "bravo patrols")
}

func TestSummaryCapsAndJoins(t *testing.T) {
	r := &Response{OrderSummary: SummaryList{"one", "two", "three", "four"}}
	tester.Eq(t, r.Summary(3), "one; two; three")
	tester.Eq(t, r.Summary(10), "one; two; three; four")
}

func TestSummaryFallsBackToCommentary(t *testing.T) {
	r := &Response{Commentary: "  holding all positions  "}
	tester.Eq(t, r.Summary(5), "holding all positions")

	empty := &Response{Raw: `{"orders": []}`}
	tester.Eq(t, empty.Summary(5), "", "the raw envelope is never a summary")
}

func TestPermanentErrorWrapping(t *testing.T) {
	base := errors.New("401 unauthorized")
	err := NewPermanentError(base)
	tester.True(t, IsPermanent(err))
	tester.True(t, errors.Is(err, base))
	tester.False(t, IsPermanent(base))
}
