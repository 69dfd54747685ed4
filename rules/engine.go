package rules

import (
	"fmt"
	"io"
	"strings"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"gopkg.in/yaml.v3"
)

// Engine matches per-lock tuning rules against a lock at bind time. Rule sets
// are loaded from YAML, filters are expr programs over Input, and matching
// rules contribute namespaced settings, later matches overriding earlier
// ones.
type Engine struct {
	RuleSets map[string]RuleSet
	Rules    []CompiledRule
}

type Rule struct {
	Description string              `yaml:"description"`
	Filter      string              `yaml:"filter"`
	Settings    map[string]Settings `yaml:"settings"`
	Children    []Rule              `yaml:"children"`
}

type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Settings    map[string]Settings
	Children    []CompiledRule
}

type RuleSet struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"dependson"`
	Rules     []Rule   `yaml:"rules"`
}

type InputLock struct {
	Name string
	Slot int
}

type Input struct {
	Lock InputLock
}

func New() *Engine {
	return &Engine{
		RuleSets: map[string]RuleSet{},
	}
}

func (e *Engine) LoadReader(r io.Reader) error {
	var rs RuleSet

	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return fmt.Errorf("ruleset decode: %w", err)
	}

	if rs.Name == "" {
		return fmt.Errorf("ruleset decode: missing name")
	}

	e.RuleSets[rs.Name] = rs

	return nil
}

func (e *Engine) CompileRules() error {
	alreadyLoaded := map[string]bool{}

	for k := range e.RuleSets {
		alreadyLoaded[k] = false
	}

	for k := range e.RuleSets {
		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, []string{}, k); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) compileRuleSet(alreadyLoaded map[string]bool, trail []string, name string) error {
	rs, ok := e.RuleSets[name]
	if !ok {
		return fmt.Errorf("ruleset missing dependency: %s->%s", strings.Join(trail, "->"), name)
	}

	trail = append(trail, rs.Name)

	for _, k := range rs.DependsOn {
		for _, t := range trail {
			if k == t {
				return fmt.Errorf("ruleset circular dependency: %s->%s", strings.Join(trail, "->"), k)
			}
		}

		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, trail, k); err != nil {
				return err
			}
		}
	}

	if cr, err := compileRules(rs.Rules); err != nil {
		return fmt.Errorf("ruleset compilation: %s: %w", strings.Join(trail, "->"), err)
	} else {
		e.Rules = append(e.Rules, cr...)
	}

	alreadyLoaded[name] = true

	return nil
}

func compileRules(rules []Rule) ([]CompiledRule, error) {
	var compiledRules []CompiledRule

	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter compilation: %w", err)
		}

		if childCompiledRules, err := compileRules(rule.Children); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		} else {
			compiledRules = append(compiledRules, CompiledRule{
				Description: rule.Description,
				Filter:      cf,
				Settings:    rule.Settings,
				Children:    childCompiledRules,
			})
		}
	}

	return compiledRules, nil
}

// Execute evaluates every compiled rule against the input. Children are only
// considered when their parent matched, and deeper or later settings win.
func (e *Engine) Execute(i Input) (Output, error) {
	out := Output{Settings: map[string]Settings{}}

	if err := executeRules(e.Rules, i, &out); err != nil {
		return Output{}, err
	}

	return out, nil
}

func executeRules(rules []CompiledRule, i Input, out *Output) error {
	for _, r := range rules {
		v, err := expr.Run(r.Filter, i)
		if err != nil {
			return fmt.Errorf("filter execution: %s: %w", r.Description, err)
		}

		matched, ok := v.(bool)
		if !ok {
			return fmt.Errorf("filter execution: %s: filter did not return boolean", r.Description)
		}

		if !matched {
			continue
		}

		out.merge(r.Settings)

		if err := executeRules(r.Children, i, out); err != nil {
			return err
		}
	}

	return nil
}
