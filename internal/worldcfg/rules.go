package worldcfg

import (
	"maps"
	"slices"
	"sync"

	"voxelworlds.ai/internal/yamlsec"
)

// RuleSet maps game rule names to raw string values. It is safe for
// concurrent use: apply iterates it while commands insert. A nil RuleSet
// reads as empty.
type RuleSet struct {
	mu    sync.RWMutex
	rules map[string]string
}

func NewRuleSet(rules map[string]string) *RuleSet {
	rs := &RuleSet{rules: make(map[string]string, len(rules))}
	maps.Copy(rs.rules, rules)
	return rs
}

// LoadRuleSet reads every key of sec as a rule. A nil section is an empty set.
func LoadRuleSet(sec *yamlsec.Section) (*RuleSet, error) {
	rs := NewRuleSet(nil)
	if sec == nil {
		return rs, nil
	}
	for _, k := range sec.Keys() {
		if !sec.Contains(k) {
			continue
		}
		v, err := sec.String(k)
		if err != nil {
			return nil, sectionErr(err)
		}
		rs.rules[k] = v
	}
	return rs, nil
}

// Write stores every rule into sec as a string scalar.
func (r *RuleSet) Write(sec *yamlsec.Section) {
	for _, name := range r.Names() {
		v, _ := r.Get(name)
		sec.SetString(name, v)
	}
}

func (r *RuleSet) Get(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.rules[name]
	return v, ok
}

func (r *RuleSet) Set(name, value string) {
	r.mu.Lock()
	r.rules[name] = value
	r.mu.Unlock()
}

func (r *RuleSet) Delete(name string) {
	r.mu.Lock()
	delete(r.rules, name)
	r.mu.Unlock()
}

func (r *RuleSet) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Names returns the rule names in sorted order.
func (r *RuleSet) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.rules))
}

// Snapshot returns a copy of the rules.
func (r *RuleSet) Snapshot() map[string]string {
	if r == nil {
		return map[string]string{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.rules)
}

// Clone returns an independent copy.
func (r *RuleSet) Clone() *RuleSet {
	return NewRuleSet(r.Snapshot())
}

func (r *RuleSet) Equal(o *RuleSet) bool {
	return maps.Equal(r.Snapshot(), o.Snapshot())
}
