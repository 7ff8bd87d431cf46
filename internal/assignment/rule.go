// Package assignment decides which blocks of a shared partition a worker
// scans.
//
// A rule is a list of clauses separated by ';', each written as
// identity:selector. The identity is a worker name (case-insensitive), "all"
// or "random". The selector is empty or "all", or a comma separated list of
// "odd", "even", "i/m" (the i-th of m equal slices) and 1-based block
// positions. A selector mentioning "random" shuffles the result.
//
//	hostA:odd;all:even
//	worker-1:1/3;worker-2:2/3;worker-3:3/3random
package assignment

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	identityAll    = "all"
	identityRandom = "random"
)

type selectorKind int

const (
	selectAll selectorKind = iota
	selectOdd
	selectEven
	selectSlice
	selectPosition
)

type selector struct {
	kind  selectorKind
	index int // 1-based position or slice number
	of    int // slice count
}

// Clause assigns a selection of blocks to one identity.
type Clause struct {
	Identity  string
	Shuffle   bool
	selectors []selector
}

// Rule is an ordered list of clauses; the first clause matching a worker
// decides its blocks.
type Rule struct {
	Clauses []Clause
}

// Empty reports whether the rule has no clauses, which assigns every block
// to every worker.
func (r Rule) Empty() bool {
	return len(r.Clauses) == 0
}

// ParseRule parses an assignment rule. Whitespace is ignored.
func ParseRule(raw string) (Rule, error) {
	var rule Rule
	compact := strings.Join(strings.Fields(raw), "")
	if compact == "" {
		return rule, nil
	}

	for _, part := range strings.Split(compact, ";") {
		if part == "" {
			continue
		}
		clause, err := parseClause(part)
		if err != nil {
			return Rule{}, err
		}
		rule.Clauses = append(rule.Clauses, clause)
	}
	return rule, nil
}

func parseClause(part string) (Clause, error) {
	identity, sel, _ := strings.Cut(part, ":")
	if identity == "" {
		return Clause{}, fmt.Errorf("clause %q: missing identity", part)
	}

	c := Clause{Identity: strings.ToLower(identity)}
	if c.Identity == identityRandom {
		c.Shuffle = true
	}
	if strings.Contains(sel, "random") {
		c.Shuffle = true
		sel = strings.NewReplacer("random", "", "[", "", "]", "").Replace(sel)
	}

	if sel == "" || strings.EqualFold(sel, "all") {
		c.selectors = []selector{{kind: selectAll}}
		return c, nil
	}

	for _, item := range strings.Split(sel, ",") {
		s, err := parseSelector(item)
		if err != nil {
			return Clause{}, fmt.Errorf("clause %q: %w", part, err)
		}
		c.selectors = append(c.selectors, s)
	}
	return c, nil
}

func parseSelector(item string) (selector, error) {
	switch {
	case item == "":
		return selector{}, fmt.Errorf("empty selector")
	case strings.EqualFold(item, "all"):
		return selector{kind: selectAll}, nil
	case strings.EqualFold(item, "odd"):
		return selector{kind: selectOdd}, nil
	case strings.EqualFold(item, "even"):
		return selector{kind: selectEven}, nil
	case strings.Contains(item, "/"):
		a, b, _ := strings.Cut(item, "/")
		i, err := strconv.Atoi(a)
		if err != nil {
			return selector{}, fmt.Errorf("invalid slice %q: %w", item, err)
		}
		m, err := strconv.Atoi(b)
		if err != nil {
			return selector{}, fmt.Errorf("invalid slice %q: %w", item, err)
		}
		if i < 1 || m < 1 || i > m {
			return selector{}, fmt.Errorf("invalid slice %q", item)
		}
		return selector{kind: selectSlice, index: i, of: m}, nil
	default:
		pos, err := strconv.Atoi(item)
		if err != nil {
			return selector{}, fmt.Errorf("invalid block position %q: %w", item, err)
		}
		if pos < 1 {
			return selector{}, fmt.Errorf("block positions start at 1, got %d", pos)
		}
		return selector{kind: selectPosition, index: pos}, nil
	}
}

// matches reports whether the clause applies to worker.
func (c Clause) matches(worker string) bool {
	switch c.Identity {
	case identityAll, identityRandom:
		return true
	default:
		return strings.EqualFold(c.Identity, worker)
	}
}
