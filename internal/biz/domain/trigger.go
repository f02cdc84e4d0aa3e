package domain

import (
	"regexp"
	"strings"
)

// CheckReason explains a trigger-check verdict.
type CheckReason string

const (
	ReasonOther                 CheckReason = "Other"
	ReasonSatisfied             CheckReason = "Satisfied"
	ReasonActionDisabled        CheckReason = "ActionDisabled"
	ReasonChatForbidden         CheckReason = "ChatForbidden"
	ReasonTriggerNotSatisfied   CheckReason = "TriggerNotSatisfied"
	ReasonUserIDMissing         CheckReason = "UserIdMissing"
	ReasonUserForbidden         CheckReason = "UserForbidden"
	ReasonOnCooldown            CheckReason = "OnCooldown"
	ReasonCustomConditionNotMet CheckReason = "CustomConditionNotMet"
)

// MaxPatternMatches caps how many non-overlapping matches a repeating
// pattern trigger collects (1 first match + 100 continuations), bounding
// the cost of adversarial input.
const MaxPatternMatches = 101

// TriggerCheckResult is the verdict of evaluating triggers against a
// message. Matches holds one entry per pattern match; each entry is the
// full match followed by its capture groups.
type TriggerCheckResult struct {
	ShouldExecute bool
	Matches       [][]string
	SkipCooldown  bool
	Reason        CheckReason
}

// EmptyTriggerCheckResult is the identity element of Merge.
func EmptyTriggerCheckResult() TriggerCheckResult {
	return TriggerCheckResult{Reason: ReasonOther}
}

// Merge combines two results: ShouldExecute and SkipCooldown are OR-ed,
// Matches are concatenated in trigger-declaration order, and the reason of
// the most recent non-trivial operand wins.
func (r TriggerCheckResult) Merge(other TriggerCheckResult) TriggerCheckResult {
	merged := TriggerCheckResult{
		ShouldExecute: r.ShouldExecute || other.ShouldExecute,
		SkipCooldown:  r.SkipCooldown || other.SkipCooldown,
		Reason:        r.Reason,
	}
	merged.Matches = append(merged.Matches, r.Matches...)
	merged.Matches = append(merged.Matches, other.Matches...)
	if other.Reason != ReasonOther {
		merged.Reason = other.Reason
	}
	return merged
}

// Trigger decides whether a message should invoke an action.
type Trigger interface {
	Check(msg *IncomingMessage) TriggerCheckResult
}

// TextTrigger matches the full message text, case-insensitively.
type TextTrigger string

func (t TextTrigger) Check(msg *IncomingMessage) TriggerCheckResult {
	if !strings.EqualFold(string(t), msg.Text) {
		return EmptyTriggerCheckResult()
	}
	return TriggerCheckResult{
		ShouldExecute: true,
		Matches:       [][]string{{msg.Text}},
		Reason:        ReasonSatisfied,
	}
}

// CategoryTrigger matches the message category; CategoryAny matches all.
type CategoryTrigger Category

func (t CategoryTrigger) Check(msg *IncomingMessage) TriggerCheckResult {
	if Category(t) != CategoryAny && Category(t) != msg.Category {
		return EmptyTriggerCheckResult()
	}
	return TriggerCheckResult{ShouldExecute: true, Reason: ReasonSatisfied}
}

// PatternTrigger matches the message text against a regular expression.
// When Global is set, successive non-overlapping matches are collected up
// to MaxPatternMatches; otherwise only the first match is taken.
type PatternTrigger struct {
	Pattern *regexp.Regexp
	Global  bool
}

// NewPatternTrigger compiles pattern and panics on error, mirroring
// regexp.MustCompile; trigger sets are built at configuration time.
func NewPatternTrigger(pattern string, global bool) PatternTrigger {
	return PatternTrigger{Pattern: regexp.MustCompile(pattern), Global: global}
}

func (t PatternTrigger) Check(msg *IncomingMessage) TriggerCheckResult {
	limit := 1
	if t.Global {
		limit = MaxPatternMatches
	}
	found := t.Pattern.FindAllStringSubmatch(msg.Text, limit)
	if len(found) == 0 {
		return EmptyTriggerCheckResult()
	}
	return TriggerCheckResult{
		ShouldExecute: true,
		Matches:       found,
		Reason:        ReasonSatisfied,
	}
}
