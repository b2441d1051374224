// Package orders turns the loosely structured order list produced by a
// language model into validated engine commands. Parsing is tolerant per
// entry: a malformed order is dropped with a warning while the rest of the
// batch survives.
package orders

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"tacticom/internal/model"
)

// Defaults applied when the model omits optional parameters.
const (
	DefaultDefendRadius      = 100.0
	DefaultSeekRadius        = 200.0
	DefaultEscortRadius      = 75.0
	DefaultFireSupportRadius = 250.0
)

// Parser converts raw order entries into commands. Spawn-type orders are
// handled in a first pass so that later orders can reference the groups they
// create by whatever placeholder id the model used.
type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log}
}

// Result carries the parsed batch plus per-entry warnings for dropped or
// corrected orders.
type Result struct {
	Commands []model.Command
	Warnings []string
}

// Parse processes the raw order list in two passes. Pass one handles
// spawn_squad and deploy_asset, minting provisional group ids and recording
// the model's placeholder ids as aliases. Pass two handles everything else,
// rewriting alias references to the minted ids.
func (p *Parser) Parse(raw []any) Result {
	var res Result
	aliases := map[string]string{}

	warn := func(i int, format string, args ...any) {
		msg := fmt.Sprintf("order %d: %s", i, fmt.Sprintf(format, args...))
		res.Warnings = append(res.Warnings, msg)
		p.log.Warn("order dropped", "detail", msg)
	}

	type entry struct {
		idx int
		obj map[string]any
	}
	var creates, others []entry
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			warn(i, "not an object (%T)", item)
			continue
		}
		t := strField(obj, "type")
		if t == string(model.CmdSpawnSquad) || t == string(model.CmdDeployAsset) {
			creates = append(creates, entry{i, obj})
		} else {
			others = append(others, entry{i, obj})
		}
	}

	for _, e := range creates {
		cmd, alias, err := p.parseCreate(e.obj)
		if err != nil {
			warn(e.idx, "%v", err)
			continue
		}
		if alias != "" {
			aliases[alias] = cmd.GroupID
		}
		res.Commands = append(res.Commands, cmd)
	}
	for _, e := range others {
		cmd, err := p.parseOrder(e.obj, aliases)
		if err != nil {
			warn(e.idx, "%v", err)
			continue
		}
		res.Commands = append(res.Commands, cmd)
	}
	return res
}

func (p *Parser) parseCreate(obj map[string]any) (model.Command, string, error) {
	t := strField(obj, "type")
	side := strings.ToUpper(strField(obj, "side"))
	pos, err := position(obj, "position", "location")
	if err != nil {
		return model.Command{}, "", err
	}
	alias := firstStr(obj, "group_id", "group")

	switch model.CommandType(t) {
	case model.CmdSpawnSquad:
		if !model.ValidSide(side, model.SpawnableSides) {
			return model.Command{}, "", fmt.Errorf("spawn_squad: invalid side %q", side)
		}
		classes := strList(obj["unit_classes"])
		if len(classes) == 0 {
			return model.Command{}, "", fmt.Errorf("spawn_squad: empty unit_classes")
		}
		id := model.NewSpawnGroupID(side)
		return model.SpawnSquad(id, side, pos, classes), alias, nil

	case model.CmdDeployAsset:
		if !model.ValidSide(side, model.DeployableSides) {
			return model.Command{}, "", fmt.Errorf("deploy_asset: invalid side %q", side)
		}
		template := strField(obj, "template")
		if template == "" {
			return model.Command{}, "", fmt.Errorf("deploy_asset: missing template")
		}
		id := model.NewDeployGroupID(side)
		return model.DeployAsset(id, side, template, pos, strList(obj["unit_classes"])), alias, nil
	}
	return model.Command{}, "", fmt.Errorf("unreachable create type %q", t)
}

func (p *Parser) parseOrder(obj map[string]any, aliases map[string]string) (model.Command, error) {
	t := strField(obj, "type")
	resolve := func(id string) string {
		if mapped, ok := aliases[id]; ok {
			return mapped
		}
		return id
	}
	groupID := resolve(firstStr(obj, "group_id", "group"))

	switch model.CommandType(t) {
	case model.CmdMoveTo:
		if groupID == "" {
			return model.Command{}, fmt.Errorf("move_to: missing group_id")
		}
		pos, err := position(obj, "position", "location")
		if err != nil {
			return model.Command{}, fmt.Errorf("move_to: %w", err)
		}
		return model.MoveTo(groupID, pos,
			enum(obj, "speed", model.SpeedNormal, model.SpeedSlow, model.SpeedNormal, model.SpeedFast),
			enum(obj, "behaviour", model.BehaviourAware, model.BehaviourSafe, model.BehaviourAware, model.BehaviourCombat, model.BehaviourStealth),
			enum(obj, "combat_mode", model.CombatYellow, model.CombatBlue, model.CombatGreen, model.CombatWhite, model.CombatYellow, model.CombatRed),
		), nil

	case model.CmdDefendArea:
		if groupID == "" {
			return model.Command{}, fmt.Errorf("defend_area: missing group_id")
		}
		pos, err := position(obj, "position", "location")
		if err != nil {
			return model.Command{}, fmt.Errorf("defend_area: %w", err)
		}
		r, err := radius(obj, DefaultDefendRadius)
		if err != nil {
			return model.Command{}, fmt.Errorf("defend_area: %w", err)
		}
		return model.DefendArea(groupID, pos, r,
			enum(obj, "behaviour", model.BehaviourCombat, model.BehaviourSafe, model.BehaviourAware, model.BehaviourCombat, model.BehaviourStealth),
		), nil

	case model.CmdPatrolRoute:
		if groupID == "" {
			return model.Command{}, fmt.Errorf("patrol_route: missing group_id")
		}
		wps, err := waypoints(obj["waypoints"])
		if err != nil {
			return model.Command{}, fmt.Errorf("patrol_route: %w", err)
		}
		return model.PatrolRoute(groupID, wps,
			enum(obj, "speed", model.SpeedNormal, model.SpeedSlow, model.SpeedNormal, model.SpeedFast),
			enum(obj, "behaviour", model.BehaviourSafe, model.BehaviourSafe, model.BehaviourAware, model.BehaviourCombat, model.BehaviourStealth),
		), nil

	case model.CmdSeekAndDestroy:
		if groupID == "" {
			return model.Command{}, fmt.Errorf("seek_and_destroy: missing group_id")
		}
		pos, err := position(obj, "position", "location")
		if err != nil {
			return model.Command{}, fmt.Errorf("seek_and_destroy: %w", err)
		}
		r, err := radius(obj, DefaultSeekRadius)
		if err != nil {
			return model.Command{}, fmt.Errorf("seek_and_destroy: %w", err)
		}
		return model.SeekAndDestroy(groupID, pos, r), nil

	case model.CmdTransportGroup:
		vehicle := resolve(firstStr(obj, "vehicle_group_id", "group_id", "group"))
		passenger := resolve(strField(obj, "passenger_group_id"))
		if vehicle == "" || passenger == "" {
			return model.Command{}, fmt.Errorf("transport_group: missing vehicle or passenger group")
		}
		pickup, err := position(obj, "pickup")
		if err != nil {
			return model.Command{}, fmt.Errorf("transport_group: pickup: %w", err)
		}
		dropoff, err := position(obj, "dropoff")
		if err != nil {
			return model.Command{}, fmt.Errorf("transport_group: dropoff: %w", err)
		}
		return model.TransportGroup(vehicle, passenger, pickup, dropoff), nil

	case model.CmdEscortGroup:
		escort := resolve(firstStr(obj, "escort_group_id", "group_id", "group"))
		target := resolve(strField(obj, "target_group_id"))
		if escort == "" || target == "" {
			return model.Command{}, fmt.Errorf("escort_group: missing escort or target group")
		}
		r, err := radius(obj, DefaultEscortRadius)
		if err != nil {
			return model.Command{}, fmt.Errorf("escort_group: %w", err)
		}
		return model.EscortGroup(escort, target, r), nil

	case model.CmdFireSupport:
		if groupID == "" {
			return model.Command{}, fmt.Errorf("fire_support: missing group_id")
		}
		pos, err := position(obj, "position", "location")
		if err != nil {
			return model.Command{}, fmt.Errorf("fire_support: %w", err)
		}
		r, err := radius(obj, DefaultFireSupportRadius)
		if err != nil {
			return model.Command{}, fmt.Errorf("fire_support: %w", err)
		}
		return model.FireSupport(groupID, pos, r), nil
	}
	return model.Command{}, fmt.Errorf("unknown order type %q", t)
}

// --- field helpers ---

func strField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstStr(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strField(obj, k); s != "" {
			return s
		}
	}
	return ""
}

// enum uppercases the field and keeps it only if it is one of the allowed
// values; anything else silently becomes the default.
func enum(obj map[string]any, key, def string, allowed ...string) string {
	v := strings.ToUpper(strField(obj, key))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

// radius returns the order's radius or the default, rejecting non-positive
// values.
func radius(obj map[string]any, def float64) (float64, error) {
	v, ok := obj["radius"]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("radius %v not numeric", v)
	}
	if f <= 0 {
		return 0, fmt.Errorf("radius %v not positive", f)
	}
	return f, nil
}

// position pulls a coordinate from the first present key. Coordinates may
// arrive as numbers or numeric strings; the first three components are kept
// and a missing z is padded with zero.
func position(obj map[string]any, keys ...string) ([]float64, error) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return coercePos(v)
		}
	}
	return nil, fmt.Errorf("missing %s", strings.Join(keys, "/"))
}

func coercePos(v any) ([]float64, error) {
	list, ok := v.([]any)
	if !ok || len(list) < 2 {
		return nil, fmt.Errorf("position %v not a coordinate list", v)
	}
	if len(list) > 3 {
		list = list[:3]
	}
	out := make([]float64, 0, 3)
	for _, c := range list {
		f, ok := toFloat(c)
		if !ok {
			return nil, fmt.Errorf("position component %v not numeric", c)
		}
		out = append(out, f)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("position %v too short", v)
	}
	for len(out) < 3 {
		out = append(out, 0)
	}
	return out, nil
}

func waypoints(v any) ([][]float64, error) {
	list, ok := v.([]any)
	if !ok || len(list) < 2 {
		return nil, fmt.Errorf("needs at least 2 waypoints")
	}
	out := make([][]float64, 0, len(list))
	for i, wp := range list {
		pos, err := coercePos(wp)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		out = append(out, pos)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func strList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
