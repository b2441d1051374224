// Package commander is the decision core: it gates decision cycles on world
// change, runs objective evaluation and group assignment, and drives the
// asynchronous language-model invocation that produces orders.
package commander

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tacticom/internal/audit"
	"tacticom/internal/commands"
	"tacticom/internal/config"
	"tacticom/internal/decision"
	"tacticom/internal/llm"
	"tacticom/internal/model"
	"tacticom/internal/orders"
	"tacticom/internal/sandbox"
	"tacticom/internal/state"
)

// Phase is the lifecycle of the in-flight model call.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// cycleOutcome is what the background worker leaves behind for the next
// cycle's bookkeeping. Commands are already queued by the time it is set.
type cycleOutcome struct {
	cycle    int
	provider string
	queued   int
	blocked  int
	warnings int
	err      error
}

// HistoryEntry is one line of order history kept for operator inspection.
type HistoryEntry struct {
	Cycle       int      `json:"cycle"`
	MissionTime float64  `json:"mission_time"`
	Objectives  []string `json:"objectives"`
	Orders      []string `json:"orders"`
}

// Commander owns the decision loop.
type Commander struct {
	cfg       *config.Config
	state     *state.Manager
	providers *llm.Manager
	rate      *llm.RateLimiter
	ctxCache  *llm.ContextCache
	parser    *orders.Parser
	sandbox   *sandbox.Sandbox
	queue     *commands.Queue
	evaluator *decision.Evaluator
	assigner  *decision.Assigner
	audit     *audit.Store
	log       *slog.Logger

	mu               sync.Mutex
	cycle            int
	lastHash         string
	lastDecisionTime float64
	decidedOnce      bool

	llmEnabled  bool
	circuitOpen bool
	errorCount  int
	fatal       bool

	phase   Phase
	outcome *cycleOutcome

	assignments []model.GroupAssignment
	summaries   []OrderSummary
	history     []HistoryEntry

	totalCalls            int
	totalPromptTokens     int
	totalCompletionTokens int
}

// New wires the decision core together.
func New(cfg *config.Config, st *state.Manager, providers *llm.Manager,
	queue *commands.Queue, aud *audit.Store, log *slog.Logger) *Commander {

	if log == nil {
		log = slog.Default()
	}
	calc := decision.NewCalculator()
	return &Commander{
		cfg:        cfg,
		state:      st,
		providers:  providers,
		rate:       llm.NewRateLimiter(cfg.Decision.MinLLMInterval),
		ctxCache:   llm.NewContextCache(),
		parser:     orders.NewParser(log),
		sandbox:    sandbox.New(cfg.Sandbox, cfg.Decision.MaxUnitsPerSide, st, aud, log),
		queue:      queue,
		evaluator:  decision.NewEvaluator(log),
		assigner:   decision.NewAssigner(calc, log),
		audit:      aud,
		log:        log,
		llmEnabled: len(providers.Providers()) > 0,
		phase:      PhaseIdle,
	}
}

// ProcessWorldState runs one decision cycle attempt against a fresh world
// snapshot. Most calls return without doing anything: the cycle only
// proceeds when the commander is deployed, has objectives and controlled
// groups, enough mission time has passed, and the world has actually
// changed.
func (c *Commander) ProcessWorldState(ctx context.Context, world *model.WorldState) {
	c.mu.Lock()
	if c.fatal {
		c.mu.Unlock()
		c.log.Error("commander in fatal error state, all processing stopped")
		return
	}
	c.consumeOutcomeLocked()
	c.mu.Unlock()

	if !c.state.Deployed() {
		c.log.Debug("not deployed, skipping decision loop")
		return
	}
	objectives := c.state.Objectives()
	if len(objectives) == 0 {
		c.log.Debug("no objectives defined, skipping decision loop")
		return
	}
	controlled := world.ControlledGroups()
	if len(controlled) == 0 {
		c.log.Debug("no controlled groups, skipping decision loop")
		return
	}

	c.mu.Lock()
	sinceLast := world.MissionTime - c.lastDecisionTime
	if c.decidedOnce && sinceLast < c.cfg.Decision.MinDecisionInterval {
		c.mu.Unlock()
		c.log.Debug("too soon for new decision", "since_last", sinceLast,
			"minimum", c.cfg.Decision.MinDecisionInterval)
		return
	}
	hash := WorldFingerprint(world, objectives)
	if hash == c.lastHash {
		c.mu.Unlock()
		c.log.Debug("no significant state change, skipping cycle")
		return
	}
	c.cycle++
	c.lastHash = hash
	c.lastDecisionTime = world.MissionTime
	c.decidedOnce = true
	cycle := c.cycle
	c.mu.Unlock()

	c.log.Info("decision cycle started", "cycle", cycle, "since_last", sinceLast)

	updated := c.evaluator.Evaluate(objectives, world)
	c.state.ReplaceObjectives(updated)
	active := decision.Active(updated)
	if len(active) == 0 {
		c.log.Info("no active objectives, clearing assignments")
		c.mu.Lock()
		c.assignments = nil
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.assignments = c.assigner.Assign(active, world, c.assignments)
	assignments := append([]model.GroupAssignment(nil), c.assignments...)
	llmUsable := c.llmEnabled && !c.circuitOpen
	c.mu.Unlock()

	if !llmUsable {
		c.log.Error("language model unavailable, no orders will be issued",
			"enabled", c.llmEnabled, "circuit_open", c.circuitOpen)
		return
	}

	// Pending check, rate gate and the phase transition share one critical
	// section so two concurrent updates cannot both dispatch a call.
	c.mu.Lock()
	if c.phase == PhasePending {
		c.mu.Unlock()
		c.log.Debug("model call already in flight, skipping invocation")
		return
	}
	if !c.rate.Allow(world.MissionTime) {
		c.mu.Unlock()
		c.log.Debug("model call rate limited", "mission_time", world.MissionTime)
		return
	}
	c.phase = PhasePending
	summaries := append([]OrderSummary(nil), c.summaries...)
	c.mu.Unlock()

	go c.invoke(ctx, cycle, world, active, assignments, summaries)
}

// invoke is the background model call: build prompts, generate, parse,
// screen, queue. It runs outside the world-update path so the bridge never
// blocks on a provider.
func (c *Commander) invoke(ctx context.Context, cycle int, world *model.WorldState,
	active []model.Objective, assignments []model.GroupAssignment, summaries []OrderSummary) {

	client, provider, err := c.providers.Next(ctx)
	if err != nil {
		c.finishFailure(cycle, world, "", err)
		return
	}
	defer client.Close()

	objHash := ObjectivesHash(active)
	cachedCtx, ok := c.ctxCache.Get(objHash)
	if !ok {
		var prevAO *state.AOIntel
		if intel, found := c.state.PreviousAOIntel(); found {
			prevAO = &intel
			c.state.ClearPreviousAOIntel()
			c.log.Info("previous AO intelligence added to cached context")
		}
		cachedCtx = BuildCachedContext(active, prevAO, c.state.ResourceStatuses())
		c.ctxCache.Put(objHash, cachedCtx)
		c.log.Info("cached context rebuilt", "objectives_hash", objHash)
	} else {
		c.log.Debug("cached context reused", "objectives_hash", objHash)
	}

	sit := AssessSituation(world, active)
	directive := c.state.DeploymentDirective()
	if computed := ComputeDeployDirective(sit, c.state.ResourceStatuses()); computed != "" {
		if directive != "" {
			directive += "\n"
		}
		directive += computed
	}

	dynamic := BuildDynamicPrompt(world, c.state.MissionIntent(), directive,
		sit, assignments, summaries)

	c.log.Info("model call started", "cycle", cycle, "provider", provider.Name,
		"cached_chars", len(cachedCtx), "dynamic_chars", len(dynamic))

	resp, err := client.Generate(ctx, cachedCtx, dynamic)
	if err != nil {
		c.providers.RecordFailure(provider.Name)
		c.audit.Record(audit.Entry{
			Cycle: cycle, MissionTime: world.MissionTime, Kind: "llm",
			Provider: provider.Name, Verdict: "ERROR", Reason: err.Error(),
		})
		c.finishFailure(cycle, world, provider.Name, err)
		return
	}

	c.mu.Lock()
	c.errorCount = 0
	c.totalCalls++
	c.totalPromptTokens += resp.Usage.Prompt
	c.totalCompletionTokens += resp.Usage.Completion
	c.mu.Unlock()
	c.providers.RecordSuccess(provider.Name)

	parsed := c.parser.Parse(resp.Orders)
	allowed, verdicts := c.sandbox.Screen(world, parsed.Commands, cycle)
	final, dupWarnings := orders.Dedup(allowed)
	blocked := len(parsed.Commands) - len(allowed)

	if len(resp.Orders) == 0 {
		c.log.Info("model returned no orders, situation stable")
	}
	if len(final) > 0 {
		c.queue.EnqueueBatch(final)
		c.recordHistory(cycle, world, active, final)
		summary := resp.Summary(c.cfg.Decision.OrderSummaryKeep)
		c.state.RecordAOOrder(summary)
		c.mu.Lock()
		c.summaries = append(c.summaries, OrderSummary{
			Cycle:       cycle,
			MissionTime: float64(int(world.MissionTime)),
			Summary:     summary,
		})
		if keep := c.cfg.Decision.OrderSummaryKeep; len(c.summaries) > keep {
			c.summaries = c.summaries[len(c.summaries)-keep:]
		}
		c.mu.Unlock()
	}

	c.audit.Record(audit.Entry{
		Cycle: cycle, MissionTime: world.MissionTime, Kind: "llm",
		Provider: provider.Name, Verdict: "OK",
		Detail: fmt.Sprintf("orders=%d queued=%d blocked=%d tokens=%d",
			len(resp.Orders), len(final), blocked, resp.Usage.Total),
	})

	c.mu.Lock()
	c.phase = PhaseReady
	c.outcome = &cycleOutcome{
		cycle:    cycle,
		provider: provider.Name,
		queued:   len(final),
		blocked:  blocked,
		warnings: len(parsed.Warnings) + len(dupWarnings) + blockedCount(verdicts),
	}
	c.mu.Unlock()
}

func blockedCount(verdicts []sandbox.Verdict) int {
	n := 0
	for _, v := range verdicts {
		if !v.Allowed {
			n++
		}
	}
	return n
}

// finishFailure charges the consecutive-error budget and either falls back
// to the next provider or opens the circuit breaker.
func (c *Commander) finishFailure(cycle int, world *model.WorldState, provider string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errorCount++
	c.log.Error("model call failed", "cycle", cycle, "provider", provider,
		"errors", c.errorCount, "max", c.cfg.Decision.MaxConsecutiveErrors, "err", err)

	if c.errorCount < c.cfg.Decision.MaxConsecutiveErrors {
		c.providers.FallbackToNext()
		if cli, next, nerr := c.providers.Next(context.Background()); nerr == nil {
			_ = cli.Close()
			c.log.Info("switched to fallback provider", "provider", next.Name)
			c.errorCount = 0
		} else {
			c.log.Error("no fallback provider available")
		}
	}
	if c.errorCount >= c.cfg.Decision.MaxConsecutiveErrors {
		c.circuitOpen = true
		c.llmEnabled = false
		c.log.Error("circuit breaker opened, model disabled until reinitialized",
			"consecutive_errors", c.errorCount)
	}

	c.phase = PhaseFailed
	c.outcome = &cycleOutcome{cycle: cycle, provider: provider, err: err}
}

// consumeOutcomeLocked clears a finished background call. Callers hold c.mu.
func (c *Commander) consumeOutcomeLocked() {
	if c.outcome == nil || c.phase == PhasePending {
		return
	}
	o := c.outcome
	if o.err != nil {
		c.log.Warn("previous model cycle failed", "cycle", o.cycle, "err", o.err)
	} else {
		c.log.Info("previous model cycle complete", "cycle", o.cycle,
			"provider", o.provider, "queued", o.queued, "blocked", o.blocked,
			"warnings", o.warnings)
	}
	c.outcome = nil
	c.phase = PhaseIdle
}

func (c *Commander) recordHistory(cycle int, world *model.WorldState,
	active []model.Objective, cmds []model.Command) {

	entry := HistoryEntry{Cycle: cycle, MissionTime: world.MissionTime}
	for _, o := range active {
		entry.Objectives = append(entry.Objectives, o.ID)
	}
	for _, cmd := range cmds {
		entry.Orders = append(entry.Orders, fmt.Sprintf("%s %s", cmd.Type, cmd.GroupID))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, entry)
	if keep := c.cfg.Decision.OrderHistorySize; len(c.history) > keep {
		c.history = c.history[len(c.history)-keep:]
	}
}

// EmergencyStop halts all decision processing: the circuit opens, pending
// commands are dropped and the cached context is invalidated. Reinitialize
// is the only way back.
func (c *Commander) EmergencyStop() {
	c.queue.Clear()
	c.ctxCache.Invalidate()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fatal = true
	c.circuitOpen = true
	c.llmEnabled = false
	c.phase = PhaseIdle
	c.outcome = nil
	c.log.Error("emergency stop engaged, all processing halted")
}

// Reinitialize closes the circuit breaker and rearms the provider chain and
// rate limiter. This is the only way back after the breaker opens or an
// emergency stop.
func (c *Commander) Reinitialize() {
	c.providers.Reset()
	c.rate.Reset()
	c.ctxCache.Invalidate()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fatal = false
	c.circuitOpen = false
	c.errorCount = 0
	c.llmEnabled = len(c.providers.Providers()) > 0
	c.phase = PhaseIdle
	c.outcome = nil
	c.log.Info("commander reinitialized", "llm_enabled", c.llmEnabled)
}

// Reset clears per-mission decision state while keeping configuration.
func (c *Commander) Reset() {
	c.rate.Reset()
	c.ctxCache.Invalidate()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle = 0
	c.lastHash = ""
	c.lastDecisionTime = 0
	c.decidedOnce = false
	c.assignments = nil
	c.summaries = nil
	c.history = nil
	c.phase = PhaseIdle
	c.outcome = nil
}

// Status is the admin-facing view of the decision core.
type Status struct {
	Cycle            int                     `json:"cycle"`
	Phase            Phase                   `json:"phase"`
	Halted           bool                    `json:"halted"`
	LLMEnabled       bool                    `json:"llm_enabled"`
	CircuitOpen      bool                    `json:"circuit_open"`
	ConsecutiveErrs  int                     `json:"consecutive_errors"`
	ActiveProvider   string                  `json:"active_provider"`
	ProviderFailures map[string]int          `json:"provider_failures"`
	Assignments      []model.GroupAssignment `json:"assignments"`
	QueueStats       commands.Stats          `json:"queue_stats"`
	TotalCalls       int                     `json:"total_llm_calls"`
	PromptTokens     int                     `json:"total_prompt_tokens"`
	CompletionTokens int                     `json:"total_completion_tokens"`
	History          []HistoryEntry          `json:"order_history"`
}

func (c *Commander) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Cycle:            c.cycle,
		Phase:            c.phase,
		Halted:           c.fatal,
		LLMEnabled:       c.llmEnabled,
		CircuitOpen:      c.circuitOpen,
		ConsecutiveErrs:  c.errorCount,
		ActiveProvider:   c.providers.Active(),
		ProviderFailures: c.providers.Failures(),
		Assignments:      append([]model.GroupAssignment(nil), c.assignments...),
		QueueStats:       c.queue.Stats(),
		TotalCalls:       c.totalCalls,
		PromptTokens:     c.totalPromptTokens,
		CompletionTokens: c.totalCompletionTokens,
		History:          append([]HistoryEntry(nil), c.history...),
	}
}

// TestConnectivity round-trips the active provider chain head.
func (c *Commander) TestConnectivity(ctx context.Context) (bool, string) {
	client, provider, err := c.providers.Next(ctx)
	if err != nil {
		return false, err.Error()
	}
	defer client.Close()
	ok, detail := client.TestConnection(ctx)
	if ok {
		c.providers.RecordSuccess(provider.Name)
	}
	return ok, detail
}

// Queue exposes the command queue for the bridge drain path.
func (c *Commander) Queue() *commands.Queue { return c.queue }
