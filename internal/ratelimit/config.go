package ratelimit

import "time"

// Well-known class names used by the HTTP layer.
const (
	ClassLogin          = "login"
	ClassRegistration   = "registration"
	ClassRefresh        = "refresh"
	ClassPasswordChange = "password_change"
	ClassAIGeneration   = "ai_generation"
	ClassDefault        = "default"
)

// DefaultClasses returns the production quota table. Sensitive endpoints get
// tight per-IP or per-user budgets; everything else shares a generous
// per-tenant budget.
func DefaultClasses() map[string]Class {
	return map[string]Class{
		ClassLogin:          {Name: ClassLogin, Limit: 5, Window: time.Minute, Scope: ScopeIP},
		ClassRegistration:   {Name: ClassRegistration, Limit: 3, Window: time.Minute, Scope: ScopeIP},
		ClassRefresh:        {Name: ClassRefresh, Limit: 30, Window: time.Minute, Scope: ScopeUser},
		ClassPasswordChange: {Name: ClassPasswordChange, Limit: 3, Window: time.Hour, Scope: ScopeUser},
		ClassAIGeneration:   {Name: ClassAIGeneration, Limit: 20, Window: time.Hour, Scope: ScopeTenant},
		ClassDefault:        {Name: ClassDefault, Limit: 1000, Window: time.Minute, Scope: ScopeTenant},
	}
}
