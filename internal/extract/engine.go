package extract

import (
	"errors"
	"fmt"

	"vcfcreds/domain/credential"

	log "github.com/sirupsen/logrus"
)

// ErrUnusableDocument is returned when the fetched document is not a
// container the rules can be applied to.
var ErrUnusableDocument = errors.New("document is not usable for extraction")

// Output is everything one pass extracted, in rule order.
type Output struct {
	Records  []credential.Record
	Warnings []credential.Warning
}

type Engine struct {
	installerRules []Rule
	managerRules   []Rule
}

type Option func(*Engine)

// WithInstallerRules replaces the rules applied to installer documents.
func WithInstallerRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.installerRules = rules
	}
}

// WithManagerRules replaces the rules applied to manager descriptor lists.
func WithManagerRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.managerRules = rules
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		installerRules: InstallerRules(),
		managerRules:   ManagerRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractAll runs the rules registered for scope.Provenance over doc. An
// installer document must be a JSON object and a manager document a JSON
// array; anything inside them that cannot be read becomes a warning.
func (e *Engine) ExtractAll(doc any, scope Scope) (Output, error) {
	var out Output

	var rules []Rule
	var sections map[string]any
	switch scope.Provenance {
	case credential.ProvenanceInstaller:
		obj, ok := asObject(doc)
		if !ok {
			return out, fmt.Errorf("%w: installer specification is %s", ErrUnusableDocument, describeType(doc))
		}
		rules, sections = e.installerRules, obj
	case credential.ProvenanceManager:
		if _, ok := asList(doc); !ok {
			return out, fmt.Errorf("%w: manager descriptors are %s", ErrUnusableDocument, describeType(doc))
		}
		rules = e.managerRules
	default:
		return out, fmt.Errorf("%w: unknown provenance %q", ErrUnusableDocument, scope.Provenance)
	}

	logger := scope.logger()
	for _, rule := range rules {
		raw := doc
		if rule.Section != "" {
			v, present := sections[rule.Section]
			if !present {
				logger.WithField("rule", rule.Name).Debug("section absent, skipping")
				continue
			}
			raw = v
		}

		ruleScope := scope
		ruleScope.Logger = logger.WithField("rule", rule.Name)
		res := runRule(rule, raw, ruleScope)

		for _, w := range res.Warnings {
			if w.Rule == "" {
				w.Rule = rule.Name
			}
			out.Warnings = append(out.Warnings, w)
		}
		for _, rec := range res.Records {
			if rec.Password == "" {
				out.Warnings = append(out.Warnings, credential.Warning{
					Kind:     credential.WarningEmptySecret,
					Rule:     rule.Name,
					Hostname: rec.Hostname,
					Message:  fmt.Sprintf("%s has an empty password", rec.Username),
				})
			}
			out.Records = append(out.Records, rec)
		}

		logger.WithFields(log.Fields{
			"rule":     rule.Name,
			"records":  len(res.Records),
			"warnings": len(res.Warnings),
		}).Debug("rule applied")
	}

	return out, nil
}

// runRule converts a panic inside a rule into a suspect warning. Anything the
// rule produced before panicking is discarded.
func runRule(rule Rule, raw any, scope Scope) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			scope.logger().WithField("panic", r).Error("rule failed unexpectedly")
			res = Result{Warnings: []credential.Warning{{
				Kind:    credential.WarningExtraction,
				Rule:    rule.Name,
				Message: fmt.Sprintf("rule failed unexpectedly: %v", r),
				Suspect: true,
			}}}
		}
	}()
	return rule.Extract(raw, scope)
}
