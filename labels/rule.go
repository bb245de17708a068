package labels

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/SIGTERM-015/dnsfik/stringslice"
)

// Keys read from the reverse proxy configuration of a container
const (
	RoutingEnableKey = "traefik.enable"
	routerKeyPrefix  = "traefik.http.routers."
	routerRuleSuffix = ".rule"
)

var (
	hostMatcherRegexp = regexp.MustCompile(`\bHost\(([^)]*)\)`)
	backtickRegexp    = regexp.MustCompile("`([^`]+)`")
)

// isRoutable reports whether the container opted into the reverse proxy
func isRoutable(metadata map[string]string) bool {
	enabled, err := strconv.ParseBool(strings.TrimSpace(metadata[RoutingEnableKey]))
	return err == nil && enabled
}

// isRuleKey matches `traefik.http.routers.<router>.rule`
func isRuleKey(key string) bool {
	if !strings.HasPrefix(key, routerKeyPrefix) || !strings.HasSuffix(key, routerRuleSuffix) {
		return false
	}
	return len(key) > len(routerKeyPrefix)+len(routerRuleSuffix)
}

// ruleHosts extracts the hostnames of every Host(`...`) matcher found in the router rules,
// in key order and without duplicates
func ruleHosts(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		if isRuleKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	hosts := []string{}
	for _, key := range keys {
		hosts = append(hosts, parseHostRule(metadata[key])...)
	}
	return stringslice.Unique(hosts)
}

// parseHostRule returns the arguments of the Host matchers in a rule expression.
// Both `Host(`a`) || Host(`b`)` and `Host(`a`, `b`)` are understood.
func parseHostRule(rule string) []string {
	hosts := []string{}
	for _, matcher := range hostMatcherRegexp.FindAllStringSubmatch(rule, -1) {
		for _, arg := range backtickRegexp.FindAllStringSubmatch(matcher[1], -1) {
			hosts = append(hosts, strings.TrimSpace(arg[1]))
		}
	}
	return hosts
}
