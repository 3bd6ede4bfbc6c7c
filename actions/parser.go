// Package actions recovers structured actions from free-form model output.
// The model is treated as an untrusted text generator: anything that cannot
// be decoded is dropped, never surfaced as an error. Termination and result
// guarantees live in the orchestration loop, not here.
package actions

import (
	"bytes"
	"strings"

	"github.com/bububa/ljson"
)

// Kind distinguishes the recovered action variants.
type Kind int

const (
	// KindCall requests a tool invocation.
	KindCall Kind = iota
	// KindAnswer carries the final answer text.
	KindAnswer
)

// Action is a structured instruction recovered from model output.
type Action struct {
	Kind   Kind
	Tool   string
	Args   map[string]any
	Result string
}

// rawAction is the wire shape the model is instructed to emit.
type rawAction struct {
	Action string         `json:"action"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
}

// Parse extracts zero or more actions from raw model output. Candidates are
// decoded leniently, so the usual model artifacts such as trailing commas do
// not lose an otherwise usable action.
//
// Strategy, in order:
//  1. decode the whole text as one JSON value, after stripping markdown
//     fences and any prose around the outermost JSON; a bare object is
//     treated as a one-element batch;
//  2. scan for non-nested `{...}` substrings and decode each independently,
//     dropping the ones that fail;
//  3. nothing recovered -> empty slice, which triggers the caller's
//     corrective path.
func Parse(text string) []Action {
	if raws, ok := parseWhole(text); ok {
		return convert(raws)
	}
	return convert(parseScan(text))
}

func parseWhole(text string) ([]rawAction, bool) {
	bs := cleanJSON([]byte(text))
	if len(bs) == 0 || (bs[0] != '{' && bs[0] != '[') {
		return nil, false
	}
	// a value that closes before the end of the input means extra content
	// the lenient decoder could silently ignore; scan instead
	if !singleValue(bs) {
		return nil, false
	}

	var list []rawAction
	if err := ljson.Unmarshal(bs, &list); err == nil {
		return list, true
	}
	var single rawAction
	if err := ljson.Unmarshal(bs, &single); err != nil {
		return nil, false
	}
	return []rawAction{single}, true
}

// singleValue reports whether bs holds exactly one JSON value. A truncated
// value counts: it never closes, so there is nothing after it to lose.
func singleValue(bs []byte) bool {
	depth := 0
	inString := false
	for i := 0; i < len(bs); i++ {
		c := bs[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth <= 0 {
				return len(bytes.TrimSpace(bs[i+1:])) == 0
			}
		}
	}
	return true
}

// parseScan extracts innermost brace-delimited substrings. Nested objects are
// intentionally not matched: the action protocol is flat, and an outer object
// that failed whole-text parsing is unlikely to decode anyway.
func parseScan(text string) []rawAction {
	var raws []rawAction
	start := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			start = i
		case '}':
			if start < 0 {
				continue
			}
			var ra rawAction
			if err := ljson.Unmarshal([]byte(text[start:i+1]), &ra); err == nil {
				raws = append(raws, ra)
			}
			start = -1
		}
	}
	return raws
}

func convert(raws []rawAction) []Action {
	var acts []Action
	for _, ra := range raws {
		switch ra.Action {
		case "call":
			if ra.Tool == "" {
				continue
			}
			acts = append(acts, Action{Kind: KindCall, Tool: ra.Tool, Args: ra.Args})
		case "answer":
			if ra.Result == "" {
				continue
			}
			acts = append(acts, Action{Kind: KindAnswer, Result: ra.Result})
		}
	}
	return acts
}

// cleanJSON trims markdown fences and any prefix/suffix prose around the
// outermost JSON value, e.g. `Here you go: {...}`.
func cleanJSON(bs []byte) []byte {
	bs = trimBackticks(bs)

	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')
	start := startObject
	if start == -1 || (startArray != -1 && startArray < start) {
		start = startArray
	}
	if start > 0 {
		bs = bs[start:]
	}

	end := max(bytes.LastIndexByte(bs, '}'), bytes.LastIndexByte(bs, ']'))
	if end != -1 {
		bs = bs[:end+1]
	}
	return bs
}

var backtick = []byte("```")

// trimBackticks removes a surrounding ```json ... ``` fence, if any.
func trimBackticks(bs []byte) []byte {
	start := bytes.Index(bs, backtick)
	if start == -1 {
		return bs
	}
	start += len(backtick)
	// skip the language tag up to the end of the line
	if nl := bytes.IndexByte(bs[start:], '\n'); nl != -1 && !strings.ContainsAny(string(bs[start:start+nl]), "{[") {
		start += nl + 1
	}
	rest := bs[start:]
	if end := bytes.LastIndex(rest, backtick); end != -1 {
		rest = rest[:end]
	}
	return bytes.TrimSpace(rest)
}
