package router

import (
	"fmt"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
)

// policyModel matches a subject (client id or role) against a route pattern
// and a method. "*" in a policy matches any route or method.
const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// Policies is the authorization table read from configuration.
type Policies struct {
	// Rules are [subject, route, method] triples.
	Rules [][]string `mapstructure:"rules"`
	// Groups are [client, role] pairs.
	Groups [][]string `mapstructure:"groups"`
}

// NewEnforcer builds an in-memory enforcer loaded with p.
func NewEnforcer(p Policies) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("router: casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("router: casbin enforcer: %w", err)
	}

	for _, rule := range p.Rules {
		if len(rule) != 3 {
			return nil, fmt.Errorf("router: policy rule %v must have subject, route and method", rule)
		}
		if _, err := e.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, fmt.Errorf("router: add policy %v: %w", rule, err)
		}
	}
	for _, group := range p.Groups {
		if len(group) != 2 {
			return nil, fmt.Errorf("router: policy group %v must have client and role", group)
		}
		if _, err := e.AddGroupingPolicy(group[0], group[1]); err != nil {
			return nil, fmt.Errorf("router: add group %v: %w", group, err)
		}
	}

	return e, nil
}
