package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/formworklabs/formwork/partial"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// Demo types the runner can build against. Scripts address them by the
// registry name.
type point struct {
	X int64
	Y int64
}

type address struct {
	Street string
	City   string
	Zip    string `shape:",default"`
}

type person struct {
	Name    string
	Age     uint32
	Email   *string
	Home    address
	Tags    []string         `shape:",default"`
	Scores  map[string]int64 `shape:",default"`
	Friends []person         `shape:",default"`
}

var registry = map[string]*shape.Shape{
	"point":   shape.For[point](),
	"address": shape.For[address](),
	"person":  shape.For[person](),
}

func registryNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// session drives one Partial from textual operations, one per line.
type session struct {
	p     *partial.Partial
	shape *shape.Shape
	value *partial.Value
}

func newSession(s *shape.Shape) (*session, error) {
	p, err := partial.New(s, partial.WithPlan(plan.New(s)))
	if err != nil {
		return nil, err
	}
	return &session{p: p, shape: s}, nil
}

func (s *session) close() {
	if s.value != nil {
		s.value.Close()
	}
	s.p.Close()
}

// exec runs one operation line and returns a human-readable status.
//
// Operations:
//
//	field <name>     descend into a field
//	nth <index>      descend into a field by position
//	set <text>       parse text into the current scalar frame
//	default          default-construct the current frame
//	variant <name>   select a variant case
//	some / none      option payload / absent state
//	ok / err         result sides
//	pointee / inner  indirection and wrapper descent
//	list / map / setop   begin a collection
//	item / key / value   stage an element, key or value frame
//	push <text>      stage, parse and end an element in one step
//	setkey <text>    stage, parse and end a key in one step
//	end              pop the current frame
//	defer / finish   deferred session control
//	build            finish construction and print the value
func (s *session) exec(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return "", nil
	}
	op := fields[0]
	arg := strings.Join(fields[1:], " ")

	var err error
	switch op {
	case "field":
		err = s.p.BeginField(arg)
	case "nth":
		i := 0
		if _, serr := fmt.Sscanf(arg, "%d", &i); serr != nil {
			return "", fmt.Errorf("nth: %w", serr)
		}
		err = s.p.BeginNthField(i)
	case "set":
		err = s.p.Parse(arg)
	case "default":
		err = s.p.SetDefault()
	case "variant":
		err = s.p.SelectVariantNamed(arg)
	case "some":
		err = s.p.BeginSome()
	case "none":
		err = s.p.SetNone()
	case "ok":
		err = s.p.BeginOk()
	case "err":
		err = s.p.BeginErr()
	case "pointee":
		err = s.p.BeginPointee()
	case "inner":
		err = s.p.BeginInner()
	case "list":
		err = s.p.BeginList()
	case "setop":
		err = s.p.BeginSet()
	case "map":
		err = s.p.BeginMap()
	case "item":
		err = s.p.BeginListItem()
	case "key":
		err = s.p.BeginKey()
	case "value":
		err = s.p.BeginValue()
	case "push":
		if err = s.p.BeginListItem(); err == nil {
			if err = s.p.Parse(arg); err == nil {
				err = s.p.End()
			}
		}
	case "setkey":
		if err = s.p.BeginKey(); err == nil {
			if err = s.p.Parse(arg); err == nil {
				err = s.p.End()
			}
		}
	case "end":
		err = s.p.End()
	case "defer":
		err = s.p.BeginDeferred(nil)
	case "finish":
		err = s.p.FinishDeferred()
	case "build":
		v, berr := s.p.Build()
		if berr != nil {
			return "", berr
		}
		s.value = v
		return fmt.Sprintf("built: %+v", v.Interface()), nil
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return "", err
	}
	return s.status(op), nil
}

// status summarizes the builder after an operation, for tracing.
func (s *session) status(op string) string {
	return fmt.Sprintf("%-8s frames=%d path=%s shape=%s",
		op, s.p.FrameCount(), pathString(s.p), s.p.Shape())
}

func pathString(p *partial.Partial) string {
	path := p.Path()
	if len(path) == 0 {
		return "."
	}
	return strings.Join(path, ".")
}
