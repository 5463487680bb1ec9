package domain

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Action names dispatched by the service layer
const (
	ActionDrawWife     = "draw_wife"
	ActionShowHistory  = "show_history"
	ActionForceMarry   = "force_marry"
	ActionShowGraph    = "show_graph"
	ActionRanking      = "rbq_ranking"
	ActionShowHelp     = "show_help"
	ActionResetRecords = "reset_records"
	ActionResetForceCD = "reset_force_cd"
)

// MatchMode selects how keywords are compared against message text
type MatchMode string

const (
	MatchExact      MatchMode = "exact"
	MatchStartsWith MatchMode = "starts_with"
	MatchContains   MatchMode = "contains"
)

// ParseMatchMode falls back to contains for unknown values
func ParseMatchMode(s string) MatchMode {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case MatchExact:
		return MatchExact
	case MatchStartsWith:
		return MatchStartsWith
	default:
		return MatchContains
	}
}

// Permission is the level required to run a route
type Permission string

const (
	PermissionMember Permission = "member"
	PermissionAdmin  Permission = "admin"
)

// KeywordRoute maps a keyword to an action
type KeywordRoute struct {
	Keyword    string     `yaml:"keyword" json:"keyword"`
	Action     string     `yaml:"action" json:"action"`
	Permission Permission `yaml:"permission" json:"permission"`
}

// CommandPrefixes mark explicit commands; keyword matching never sees them
var CommandPrefixes = []string{"/", "!", "！"}

// DefaultKeywordRoutes returns the built-in command table
func DefaultKeywordRoutes() []KeywordRoute {
	return []KeywordRoute{
		{Keyword: "今日老婆", Action: ActionDrawWife, Permission: PermissionMember},
		{Keyword: "抽老婆", Action: ActionDrawWife, Permission: PermissionMember},
		{Keyword: "我的老婆", Action: ActionShowHistory, Permission: PermissionMember},
		{Keyword: "抽取历史", Action: ActionShowHistory, Permission: PermissionMember},
		{Keyword: "强娶", Action: ActionForceMarry, Permission: PermissionMember},
		{Keyword: "关系图", Action: ActionShowGraph, Permission: PermissionMember},
		{Keyword: "rbq排行", Action: ActionRanking, Permission: PermissionMember},
		{Keyword: "抽老婆帮助", Action: ActionShowHelp, Permission: PermissionMember},
		{Keyword: "老婆插件帮助", Action: ActionShowHelp, Permission: PermissionMember},
		{Keyword: "重置记录", Action: ActionResetRecords, Permission: PermissionAdmin},
		{Keyword: "重置强娶时间", Action: ActionResetForceCD, Permission: PermissionAdmin},
	}
}

// KeywordRouter maps text to routes
type KeywordRouter struct {
	routes   []KeywordRoute
	byLength []KeywordRoute
}

// NewKeywordRouter builds a router; routes with an empty keyword or action are dropped
func NewKeywordRouter(routes []KeywordRoute) *KeywordRouter {
	r := &KeywordRouter{}
	for _, route := range routes {
		route.Keyword = strings.TrimSpace(route.Keyword)
		if route.Keyword == "" || route.Action == "" {
			continue
		}
		if route.Permission == "" {
			route.Permission = PermissionMember
		}
		r.routes = append(r.routes, route)
	}
	r.byLength = make([]KeywordRoute, len(r.routes))
	copy(r.byLength, r.routes)
	sort.SliceStable(r.byLength, func(i, j int) bool {
		return utf8.RuneCountInString(r.byLength[i].Keyword) > utf8.RuneCountInString(r.byLength[j].Keyword)
	})
	return r
}

// Routes returns the configured routes in configuration order
func (r *KeywordRouter) Routes() []KeywordRoute {
	out := make([]KeywordRoute, len(r.routes))
	copy(out, r.routes)
	return out
}

// Actions returns the distinct action names in configuration order
func (r *KeywordRouter) Actions() []string {
	seen := make(map[string]bool)
	var actions []string
	for _, route := range r.routes {
		if !seen[route.Action] {
			seen[route.Action] = true
			actions = append(actions, route.Action)
		}
	}
	return actions
}

// Route returns the first route for an action
func (r *KeywordRouter) Route(action string) (KeywordRoute, bool) {
	for _, route := range r.routes {
		if route.Action == action {
			return route, true
		}
	}
	return KeywordRoute{}, false
}

// Match finds the route for text under mode. Non-exact modes try longer keywords first.
func (r *KeywordRouter) Match(text string, mode MatchMode) (KeywordRoute, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return KeywordRoute{}, false
	}
	switch mode {
	case MatchExact:
		for _, route := range r.routes {
			if text == route.Keyword {
				return route, true
			}
		}
	case MatchStartsWith:
		for _, route := range r.byLength {
			if strings.HasPrefix(text, route.Keyword) {
				return route, true
			}
		}
	default:
		for _, route := range r.byLength {
			if strings.Contains(text, route.Keyword) {
				return route, true
			}
		}
	}
	return KeywordRoute{}, false
}

// MatchCommand matches text that is a keyword alone or a keyword followed by
// whitespace or an @mention, e.g. "强娶 @someone".
func (r *KeywordRouter) MatchCommand(text string) (KeywordRoute, bool) {
	text = strings.TrimSpace(text)
	for _, route := range r.byLength {
		if !strings.HasPrefix(text, route.Keyword) {
			continue
		}
		rest := text[len(route.Keyword):]
		if rest == "" {
			return route, true
		}
		next, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsSpace(next) || next == '@' {
			return route, true
		}
	}
	return KeywordRoute{}, false
}

// HasCommandPrefix reports whether text starts with an explicit command prefix
func HasCommandPrefix(text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range CommandPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// StripCommandPrefix removes one explicit command prefix
func StripCommandPrefix(text string) string {
	text = strings.TrimSpace(text)
	for _, p := range CommandPrefixes {
		if strings.HasPrefix(text, p) {
			return strings.TrimSpace(strings.TrimPrefix(text, p))
		}
	}
	return text
}
