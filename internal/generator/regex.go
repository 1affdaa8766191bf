// Copyright 2024 DataFlood Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generator

import (
	"math/rand"
	"strings"

	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// unboundedRepeat caps +, *, and {n,} quantifiers during sampling.
const unboundedRepeat = 3

// generateFromRegex produces a string matching a supported subset of
// regular expressions: literals, character classes with ranges, \d \w \s,
// groups, alternation, and {n}/{n,m}/+/*/? repetition. Anchors are ignored.
func (g *Generator) generateFromRegex(pattern string) (string, error) {
	p := &regexParser{pattern: pattern}

	node, err := p.parseAlternation()
	if err != nil {
		return "", err
	}

	if p.pos != len(p.pattern) {
		return "", lazyerrors.Errorf("regex: trailing input at %d in %q", p.pos, pattern)
	}

	var sb strings.Builder
	node.sample(g.rng, &sb)

	return sb.String(), nil
}

type regexNode interface {
	sample(rng *rand.Rand, sb *strings.Builder)
}

type seqNode []regexNode

func (n seqNode) sample(rng *rand.Rand, sb *strings.Builder) {
	for _, child := range n {
		child.sample(rng, sb)
	}
}

type altNode []regexNode

func (n altNode) sample(rng *rand.Rand, sb *strings.Builder) {
	n[rng.Intn(len(n))].sample(rng, sb)
}

type litNode rune

func (n litNode) sample(_ *rand.Rand, sb *strings.Builder) {
	sb.WriteRune(rune(n))
}

type classNode []rune

func (n classNode) sample(rng *rand.Rand, sb *strings.Builder) {
	sb.WriteRune(n[rng.Intn(len(n))])
}

type repeatNode struct {
	child    regexNode
	min, max int
}

func (n repeatNode) sample(rng *rand.Rand, sb *strings.Builder) {
	count := n.min
	if n.max > n.min {
		count += rng.Intn(n.max - n.min + 1)
	}

	for i := 0; i < count; i++ {
		n.child.sample(rng, sb)
	}
}

var (
	digitClass = classNode("0123456789")
	wordClass  = classNode("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_")
	spaceClass = classNode(" ")
	anyClass   = classNode("abcdefghijklmnopqrstuvwxyz0123456789")
)

type regexParser struct {
	pattern string
	pos     int
}

func (p *regexParser) parseAlternation() (regexNode, error) {
	first, err := p.parseSequence()
	if err != nil {
		return nil, err
	}

	branches := altNode{first}
	for p.pos < len(p.pattern) && p.pattern[p.pos] == '|' {
		p.pos++

		next, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}

	if len(branches) == 1 {
		return first, nil
	}

	return branches, nil
}

func (p *regexParser) parseSequence() (regexNode, error) {
	var seq seqNode

	for p.pos < len(p.pattern) {
		c := p.pattern[p.pos]
		if c == '|' || c == ')' {
			break
		}

		atom, err := p.parseAtom()
		if err != nil {
			return nil, err
		}

		if atom == nil { // anchor
			continue
		}

		if node, err := p.parseQuantifier(atom); err != nil {
			return nil, err
		} else {
			seq = append(seq, node)
		}
	}

	return seq, nil
}

func (p *regexParser) parseAtom() (regexNode, error) {
	switch c := p.pattern[p.pos]; c {
	case '^', '$':
		p.pos++
		return nil, nil

	case '.':
		p.pos++
		return anyClass, nil

	case '\\':
		return p.parseEscape()

	case '[':
		return p.parseClass()

	case '(':
		p.pos++

		if strings.HasPrefix(p.pattern[p.pos:], "?:") {
			p.pos += 2
		} else if p.pos < len(p.pattern) && p.pattern[p.pos] == '?' {
			return nil, lazyerrors.Errorf("regex: unsupported group at %d in %q", p.pos, p.pattern)
		}

		inner, err := p.parseAlternation()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.pattern) || p.pattern[p.pos] != ')' {
			return nil, lazyerrors.Errorf("regex: unclosed group in %q", p.pattern)
		}
		p.pos++

		return inner, nil

	case '*', '+', '?', '{':
		return nil, lazyerrors.Errorf("regex: dangling quantifier at %d in %q", p.pos, p.pattern)

	default:
		p.pos++
		return litNode(c), nil
	}
}

func (p *regexParser) parseEscape() (regexNode, error) {
	p.pos++
	if p.pos >= len(p.pattern) {
		return nil, lazyerrors.Errorf("regex: trailing backslash in %q", p.pattern)
	}

	c := p.pattern[p.pos]
	p.pos++

	switch c {
	case 'd':
		return digitClass, nil
	case 'w':
		return wordClass, nil
	case 's':
		return spaceClass, nil
	case 'n':
		return litNode('\n'), nil
	case 't':
		return litNode('\t'), nil
	case 'D', 'W', 'S', 'b', 'B':
		return nil, lazyerrors.Errorf("regex: unsupported escape \\%c in %q", c, p.pattern)
	default:
		return litNode(c), nil
	}
}

func (p *regexParser) parseClass() (regexNode, error) {
	p.pos++ // [

	if p.pos < len(p.pattern) && p.pattern[p.pos] == '^' {
		return nil, lazyerrors.Errorf("regex: negated class in %q", p.pattern)
	}

	var set []rune
	for p.pos < len(p.pattern) && p.pattern[p.pos] != ']' {
		c := p.pattern[p.pos]

		if c == '\\' {
			node, err := p.parseEscape()
			if err != nil {
				return nil, err
			}

			switch node := node.(type) {
			case classNode:
				set = append(set, node...)
			case litNode:
				set = append(set, rune(node))
			}
			continue
		}

		p.pos++

		// range like a-z
		if p.pos+1 < len(p.pattern) && p.pattern[p.pos] == '-' && p.pattern[p.pos+1] != ']' {
			hi := p.pattern[p.pos+1]
			p.pos += 2

			if hi < c {
				return nil, lazyerrors.Errorf("regex: inverted range %c-%c in %q", c, hi, p.pattern)
			}

			for r := c; r <= hi; r++ {
				set = append(set, rune(r))
			}
			continue
		}

		set = append(set, rune(c))
	}

	if p.pos >= len(p.pattern) {
		return nil, lazyerrors.Errorf("regex: unclosed class in %q", p.pattern)
	}
	p.pos++ // ]

	if len(set) == 0 {
		return nil, lazyerrors.Errorf("regex: empty class in %q", p.pattern)
	}

	return classNode(set), nil
}

func (p *regexParser) parseQuantifier(atom regexNode) (regexNode, error) {
	if p.pos >= len(p.pattern) {
		return atom, nil
	}

	switch p.pattern[p.pos] {
	case '*':
		p.pos++
		return repeatNode{atom, 0, unboundedRepeat}, nil

	case '+':
		p.pos++
		return repeatNode{atom, 1, unboundedRepeat}, nil

	case '?':
		p.pos++
		return repeatNode{atom, 0, 1}, nil

	case '{':
		end := strings.IndexByte(p.pattern[p.pos:], '}')
		if end < 0 {
			return nil, lazyerrors.Errorf("regex: unclosed repetition in %q", p.pattern)
		}

		spec := p.pattern[p.pos+1 : p.pos+end]
		p.pos += end + 1

		lo, hi, err := parseRepeatSpec(spec)
		if err != nil {
			return nil, err
		}

		return repeatNode{atom, lo, hi}, nil

	default:
		return atom, nil
	}
}

func parseRepeatSpec(spec string) (int, int, error) {
	parse := func(s string) (int, error) {
		var n int
		for _, c := range s {
			if c < '0' || c > '9' {
				return 0, lazyerrors.Errorf("regex: bad repetition %q", spec)
			}
			n = n*10 + int(c-'0')
		}
		return n, nil
	}

	before, after, found := strings.Cut(spec, ",")

	lo, err := parse(before)
	if err != nil {
		return 0, 0, err
	}

	if !found {
		return lo, lo, nil
	}

	if after == "" {
		return lo, lo + unboundedRepeat, nil
	}

	hi, err := parse(after)
	if err != nil {
		return 0, 0, err
	}

	if hi < lo {
		return 0, 0, lazyerrors.Errorf("regex: inverted repetition %q", spec)
	}

	return lo, hi, nil
}
