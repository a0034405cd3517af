package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknown   = errors.New("unknown command")
	ErrAmbiguous = errors.New("ambiguous command")
)

// AmbiguousError is returned for a prefix shared by several commands.
// Candidates holds their canonical names, sorted.
type AmbiguousError struct {
	Input      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q is ambiguous: %s", e.Input, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

// Registry is an immutable command table indexed by every name and alias.
type Registry struct {
	cmds  []*Command
	index map[string]*Command
	words []string // keys of index, sorted for prefix scans
}

// NewRegistry indexes cmds. Every name and alias must be unique across the
// whole table.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{index: make(map[string]*Command)}
	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Name == "" {
			return nil, fmt.Errorf("command #%d has no name", i)
		}
		for _, word := range append([]string{cmd.Name}, cmd.Aliases...) {
			if owner, taken := r.index[word]; taken {
				return nil, fmt.Errorf("%q is claimed by both %q and %q", word, owner.Name, cmd.Name)
			}
			r.index[word] = cmd
			r.words = append(r.words, word)
		}
		r.cmds = append(r.cmds, cmd)
	}
	slices.Sort(r.words)
	return r, nil
}

// DefaultRegistry indexes BuiltinCommands. It panics if the table is
// inconsistent, which only a code change can cause.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic("command: builtin table: " + err.Error())
	}
	return r
}

// Lookup matches word exactly against names and aliases.
func (r *Registry) Lookup(word string) (*Command, bool) {
	cmd, ok := r.index[word]
	return cmd, ok
}

// Resolve matches word case-insensitively: first exactly, then as a prefix.
// A prefix resolves when all the words it matches belong to one command.
//
// Postcondition: the error wraps ErrUnknown, or is an *AmbiguousError.
func (r *Registry) Resolve(word string) (*Command, error) {
	word = strings.ToLower(word)
	if word == "" {
		return nil, ErrUnknown
	}
	if cmd, ok := r.index[word]; ok {
		return cmd, nil
	}

	var found []*Command
	start, _ := slices.BinarySearch(r.words, word)
	for _, w := range r.words[start:] {
		if !strings.HasPrefix(w, word) {
			break
		}
		if cmd := r.index[w]; !slices.Contains(found, cmd) {
			found = append(found, cmd)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%q: %w", word, ErrUnknown)
	case 1:
		return found[0], nil
	}
	names := make([]string, len(found))
	for i, cmd := range found {
		names[i] = cmd.Name
	}
	slices.Sort(names)
	return nil, &AmbiguousError{Input: word, Candidates: names}
}

// Commands returns the table in declaration order.
func (r *Registry) Commands() []*Command {
	return slices.Clone(r.cmds)
}

// CommandsByCategory groups the table by help category, keeping declaration
// order within each group.
func (r *Registry) CommandsByCategory() map[string][]*Command {
	groups := make(map[string][]*Command)
	for _, cmd := range r.cmds {
		groups[cmd.Category] = append(groups[cmd.Category], cmd)
	}
	return groups
}

// Handlers lists each handler identifier the table uses, once, in order of
// first use.
func (r *Registry) Handlers() []string {
	var ids []string
	for _, cmd := range r.cmds {
		if !slices.Contains(ids, cmd.Handler) {
			ids = append(ids, cmd.Handler)
		}
	}
	return ids
}
