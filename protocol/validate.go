package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
)

// CodeInvalidMessage is the rejection code for any payload that fails
// validation.
const CodeInvalidMessage = "INVALID_MESSAGE"

// Chat content bounds, in characters.
const (
	MinChatLength = 1
	MaxChatLength = 500
)

// Rejection is the failure half of a validation result. It names the first
// constraint that was violated. CorrelationID is copied from the payload
// when it held one as a string, so the error reply can be matched.
type Rejection struct {
	Code          string
	Field         string
	Reason        string
	CorrelationID string
}

func (r *Rejection) Error() string {
	return r.Code + ": " + r.Message()
}

// Message is the human readable description sent back to the peer.
func (r *Rejection) Message() string {
	if r.Field == "" {
		return r.Reason
	}
	return r.Field + ": " + r.Reason
}

func reject(field, reason string) *Rejection {
	return &Rejection{Code: CodeInvalidMessage, Field: field, Reason: reason}
}

// ParseClient turns a raw frame into a typed client message or a
// *Rejection.
func ParseClient(data []byte) (ClientMessage, error) {
	if len(data) > MaxFrameSize {
		return nil, reject("", fmt.Sprintf("frame exceeds %d bytes", MaxFrameSize))
	}
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, reject("", "message must be a JSON object")
	}
	kind, ok := obj["type"].(string)
	if !ok {
		rej := reject("type", "required string")
		rej.CorrelationID = correlationOf(obj)
		return nil, rej
	}
	return ValidateClient(Kind(kind), obj)
}

// ValidateClient checks an untyped JSON tree against the schema for kind.
// It never mutates its input. Unknown fields are ignored.
func ValidateClient(kind Kind, v any) (ClientMessage, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, reject("", "message must be a JSON object")
	}
	msg, rej := validateObject(kind, obj)
	if rej != nil {
		rej.CorrelationID = correlationOf(obj)
		return nil, rej
	}
	return msg, nil
}

// correlationOf is the payload's correlationId, or "" when it is missing or
// not a string.
func correlationOf(obj map[string]any) string {
	s, _ := obj["correlationId"].(string)
	return s
}

func validateObject(kind Kind, obj map[string]any) (ClientMessage, *Rejection) {
	if !kind.IsClientKind() {
		return nil, reject("type", fmt.Sprintf("unknown message kind %q", kind))
	}
	f := newFields(obj)
	env := f.envelope()
	if f.err == nil && env.Kind != kind {
		f.fail("type", fmt.Sprintf("claimed kind %q does not match %q", kind, env.Kind))
	}

	var msg ClientMessage
	switch kind {
	case KindAuthLogin:
		msg = &AuthLogin{Envelope: env, Token: f.str("token", 1, 0)}
	case KindAuthLogout:
		msg = &AuthLogout{Envelope: env}
	case KindMove:
		msg = &Move{
			Envelope:  env,
			Direction: Direction(f.enum("direction", directions)),
			Running:   f.boolean("running"),
		}
	case KindStop:
		msg = &Stop{Envelope: env}
	case KindAttack:
		msg = &Attack{
			Envelope:   env,
			TargetID:   f.id("targetId"),
			TargetType: TargetType(f.enum("targetType", targetTypes)),
		}
	case KindUseSkill:
		msg = &UseSkill{
			Envelope:       env,
			SkillID:        f.str("skillId", 1, 0),
			TargetID:       f.optID("targetId"),
			TargetPosition: f.optPosition("targetPosition"),
		}
	case KindChat:
		msg = &Chat{
			Envelope:       env,
			Channel:        ChatChannel(f.enum("channel", chatChannels)),
			Content:        f.str("content", MinChatLength, MaxChatLength),
			TargetPlayerID: f.optID("targetPlayerId"),
		}
	case KindPickupItem:
		msg = &PickupItem{Envelope: env, ItemID: f.id("itemId")}
	case KindDropItem:
		msg = &DropItem{
			Envelope: env,
			Slot:     f.integer("slot", 0),
			Quantity: f.integer("quantity", 1),
		}
	case KindGodToggle:
		msg = &GodToggle{Envelope: env, Enabled: f.boolean("enabled")}
	case KindGodTeleport:
		msg = &GodTeleport{
			Envelope: env,
			MapID:    f.id("mapId"),
			X:        f.integer("x", math.MinInt),
			Y:        f.integer("y", math.MinInt),
		}
	case KindPing:
		msg = &Ping{Envelope: env}
	case KindRequestSync:
		msg = &RequestSync{Envelope: env}
	default:
		return nil, reject("type", fmt.Sprintf("unknown message kind %q", kind))
	}

	if f.err != nil {
		return nil, f.err
	}
	return msg, nil
}

// fields reads typed values out of a JSON object. The first violation is
// kept and every later read becomes a no-op.
type fields struct {
	obj map[string]any
	err *Rejection
}

func newFields(obj map[string]any) *fields {
	return &fields{obj: obj}
}

func (f *fields) fail(name, reason string) {
	if f.err == nil {
		f.err = reject(name, reason)
	}
}

// lookup treats null like an absent field.
func (f *fields) lookup(name string) (any, bool) {
	v, ok := f.obj[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f *fields) envelope() Envelope {
	var env Envelope
	env.Kind = Kind(f.rawString("type"))
	env.Timestamp = int64(f.integer("timestamp", 0))
	if v, ok := f.lookup("correlationId"); ok && f.err == nil {
		s, ok := v.(string)
		if !ok {
			f.fail("correlationId", "must be a string")
		}
		env.CorrelationID = s
	}
	return env
}

func (f *fields) rawString(name string) string {
	if f.err != nil {
		return ""
	}
	v, ok := f.lookup(name)
	if !ok {
		f.fail(name, "required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(name, "must be a string")
		return ""
	}
	return s
}

// str reads a required string of min..max characters; max 0 means
// unbounded.
func (f *fields) str(name string, min, max int) string {
	s := f.rawString(name)
	if f.err != nil {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n < min {
		f.fail(name, fmt.Sprintf("must be at least %d characters", min))
		return ""
	}
	if max > 0 && n > max {
		f.fail(name, fmt.Sprintf("must be at most %d characters", max))
		return ""
	}
	return s
}

func (f *fields) enum(name string, allowed []string) string {
	s := f.rawString(name)
	if f.err != nil {
		return ""
	}
	if !slices.Contains(allowed, s) {
		f.fail(name, fmt.Sprintf("must be one of %v", allowed))
		return ""
	}
	return s
}

func (f *fields) id(name string) string {
	s := f.rawString(name)
	if f.err != nil {
		return ""
	}
	if !IsID(s) {
		f.fail(name, "must be a UUID")
		return ""
	}
	return s
}

func (f *fields) optID(name string) string {
	if _, ok := f.lookup(name); !ok {
		return ""
	}
	return f.id(name)
}

func (f *fields) boolean(name string) bool {
	if f.err != nil {
		return false
	}
	v, ok := f.lookup(name)
	if !ok {
		f.fail(name, "required")
		return false
	}
	b, ok := v.(bool)
	if !ok {
		f.fail(name, "must be a boolean")
	}
	return b
}

// integer reads a required integral number no smaller than min.
func (f *fields) integer(name string, min int) int {
	if f.err != nil {
		return 0
	}
	v, ok := f.lookup(name)
	if !ok {
		f.fail(name, "required")
		return 0
	}
	n, ok := toInt(v)
	if !ok {
		f.fail(name, "must be an integer")
		return 0
	}
	if n < min {
		f.fail(name, fmt.Sprintf("must be >= %d", min))
		return 0
	}
	return n
}

func (f *fields) optPosition(name string) *Position {
	if f.err != nil {
		return nil
	}
	v, ok := f.lookup(name)
	if !ok {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		f.fail(name, "must be an object")
		return nil
	}
	sub := newFields(obj)
	p := &Position{X: sub.integer("x", math.MinInt), Y: sub.integer("y", math.MinInt)}
	if sub.err != nil {
		f.fail(name+"."+sub.err.Field, sub.err.Reason)
		return nil
	}
	return p
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return int(i), true
		}
		fl, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(fl)
	case float64:
		return floatToInt(n)
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func floatToInt(fl float64) (int, bool) {
	if math.IsNaN(fl) || math.IsInf(fl, 0) || fl != math.Trunc(fl) {
		return 0, false
	}
	if fl < math.MinInt64 || fl >= math.MaxInt64 {
		return 0, false
	}
	return int(fl), true
}

// IsID reports whether s is a canonical hyphenated UUID.
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
