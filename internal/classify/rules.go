package classify

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/focusforge/internal/domain"
)

// OverrideScore is the confidence attached to an allow-listed URL.
const OverrideScore = 0.9

// Rule maps a host, and every subdomain of it, to an activity type that is always productive.
type Rule struct {
	Domain       string `yaml:"domain"`
	ActivityType string `yaml:"activity_type"`
}

// RuleSet is the productive allow-list consulted before any classifier runs.
type RuleSet struct {
	rules []Rule
}

// DefaultRules covers conferencing, AI assistants and recipe sites.
func DefaultRules() *RuleSet {
	return NewRuleSet([]Rule{
		{Domain: "meet.google.com", ActivityType: domain.ActivityMeeting},
		{Domain: "zoom.us", ActivityType: domain.ActivityMeeting},
		{Domain: "teams.microsoft.com", ActivityType: domain.ActivityMeeting},
		{Domain: "chatgpt.com", ActivityType: domain.ActivityResearch},
		{Domain: "chat.openai.com", ActivityType: domain.ActivityResearch},
		{Domain: "claude.ai", ActivityType: domain.ActivityResearch},
		{Domain: "gemini.google.com", ActivityType: domain.ActivityResearch},
		{Domain: "perplexity.ai", ActivityType: domain.ActivityResearch},
		{Domain: "allrecipes.com", ActivityType: domain.ActivityCooking},
		{Domain: "seriouseats.com", ActivityType: domain.ActivityCooking},
		{Domain: "bbcgoodfood.com", ActivityType: domain.ActivityCooking},
	})
}

// NewRuleSet normalises the supplied rules. Rules without a domain are dropped.
func NewRuleSet(rules []Rule) *RuleSet {
	set := &RuleSet{rules: make([]Rule, 0, len(rules))}
	for _, rule := range rules {
		host := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(rule.Domain)), "www.")
		if host == "" {
			continue
		}
		activity := strings.TrimSpace(rule.ActivityType)
		if activity == "" {
			activity = domain.ActivityStudying
		}
		set.rules = append(set.rules, Rule{Domain: host, ActivityType: activity})
	}
	return set
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule file of the form `rules: [{domain, activity_type}]`.
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules %s: no rules defined", path)
	}
	return NewRuleSet(file.Rules), nil
}

// Match returns the rule whose domain covers the URL's host.
func (s *RuleSet) Match(rawURL string) (Rule, bool) {
	if s == nil || strings.TrimSpace(rawURL) == "" {
		return Rule{}, false
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return Rule{}, false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, rule := range s.rules {
		if host == rule.Domain || strings.HasSuffix(host, "."+rule.Domain) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
