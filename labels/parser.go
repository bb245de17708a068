package labels

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/SIGTERM-015/dnsfik/types"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// ErrInvalidRecord is wrapped by every error that causes a declaration to be dropped
var ErrInvalidRecord = errors.New("invalid record declaration")

// Config holds the provider defaults and switches the parser works with
type Config struct {
	// Prefix is the metadata namespace, without trailing dot
	Prefix         string
	DefaultType    types.RecordType
	DefaultProxied bool
	DefaultTTL     int
	// RoutingInference enables reading hostnames from reverse proxy router rules
	RoutingInference bool
}

// Parser converts container metadata into desired records
type Parser struct {
	config Config
	logger *zap.SugaredLogger
}

// NewParser returns a Parser for the given configuration
func NewParser(config Config, logger *zap.SugaredLogger) *Parser {
	config.Prefix = strings.TrimSuffix(config.Prefix, ".")
	if _, ok := types.ParseRecordType(string(config.DefaultType)); !ok {
		config.DefaultType = types.A
	}
	return &Parser{config: config, logger: logger.Named("labels")}
}

// Parse returns the records declared by the metadata of an entity.
// Declarations that fail validation are logged and left out, Parse never fails.
// At most one record is returned per (hostname, type), the first declaration wins.
func (p *Parser) Parse(entityName string, metadata map[string]string) []types.DesiredRecord {
	decls := p.scan(entityName, metadata)

	var candidates []*types.DesiredRecord
	if p.config.RoutingInference && isRoutable(metadata) && !decls.hasHostname() {
		candidates = p.inferFromRules(entityName, metadata, decls.defaults)
	}
	if candidates == nil {
		candidates = p.fromDeclarations(entityName, decls)
	}

	records := make([]types.DesiredRecord, 0, len(candidates))
	seen := map[types.RecordKey]bool{}
	for _, record := range candidates {
		key := record.Key()
		if seen[key] {
			p.logger.Warnw("Dropping duplicate record declaration", "entity", entityName, "record", key.String())
			continue
		}
		seen[key] = true
		records = append(records, *record)
	}
	return records
}

// scan sorts the prefixed keys of the metadata into shared defaults and named groups
func (p *Parser) scan(entityName string, metadata map[string]string) *declarations {
	decls := &declarations{defaults: group{}, groups: map[string]group{}}
	prefix := p.config.Prefix + "."
	for key, value := range metadata {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		groupID, property, ok := splitKey(strings.TrimPrefix(key, prefix))
		if !ok {
			p.logger.Debugw("Ignoring unknown metadata key", "entity", entityName, "key", key)
			continue
		}
		value = strings.TrimSpace(value)
		if groupID == "" {
			decls.defaults[property] = value
			continue
		}
		if decls.groups[groupID] == nil {
			decls.groups[groupID] = group{}
		}
		decls.groups[groupID][property] = value
	}
	return decls
}

// fromDeclarations builds one record per group, the implicit default group first
// followed by the named groups in lexical order
func (p *Parser) fromDeclarations(entityName string, decls *declarations) []*types.DesiredRecord {
	if decls.empty() {
		return nil
	}

	records := []*types.DesiredRecord{}
	if _, ok := decls.defaults[PropertyHostname]; ok || len(decls.groups) == 0 {
		if record := p.buildOrLog(entityName, "", decls.defaults, false); record != nil {
			records = append(records, record)
		}
	}

	groupIDs := make([]string, 0, len(decls.groups))
	for groupID := range decls.groups {
		groupIDs = append(groupIDs, groupID)
	}
	sort.Strings(groupIDs)
	for _, groupID := range groupIDs {
		props := decls.defaults.merge(decls.groups[groupID])
		if record := p.buildOrLog(entityName, groupID, props, false); record != nil {
			records = append(records, record)
		}
	}
	return records
}

// inferFromRules synthesizes a record per Host matcher of the router rules.
// Returns nil when the rules name no host.
func (p *Parser) inferFromRules(entityName string, metadata map[string]string, overrides group) []*types.DesiredRecord {
	hosts := ruleHosts(metadata)
	if len(hosts) == 0 {
		p.logger.Debugw("Routable entity has no Host rule", "entity", entityName)
		return nil
	}

	records := []*types.DesiredRecord{}
	for _, host := range hosts {
		props := group{PropertyHostname: host}.merge(overrides)
		if record := p.buildOrLog(entityName, host, props, true); record != nil {
			records = append(records, record)
		}
	}
	return records
}

func (p *Parser) buildOrLog(entityName string, groupID string, props group, inferred bool) *types.DesiredRecord {
	record, err := p.build(entityName, props, inferred)
	if err != nil {
		p.logger.Errorw("Dropping record declaration", "entity", entityName, "group", groupID, "declaration", props, "err", err)
		return nil
	}
	return record
}

// build validates one declaration and applies the defaulting rules
func (p *Parser) build(entityName string, props group, inferred bool) (*types.DesiredRecord, error) {
	hostname := strings.TrimSuffix(props[PropertyHostname], ".")
	if hostname == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidRecord)
	}
	if _, ok := dns.IsDomainName(hostname); !ok {
		return nil, fmt.Errorf("%w: `%s` is not a valid hostname", ErrInvalidRecord, hostname)
	}

	record := &types.DesiredRecord{Hostname: hostname, Type: types.A}
	if inferred {
		record.Type = p.config.DefaultType
	}
	if raw, ok := props[PropertyType]; ok && raw != "" {
		recordType, valid := types.ParseRecordType(raw)
		if valid {
			record.Type = recordType
		} else {
			p.logger.Warnw("Unsupported record type, falling back to A", "entity", entityName, "hostname", hostname, "type", raw)
		}
	}

	content, err := parseContent(record.Type, props[PropertyContent])
	if err != nil {
		return nil, err
	}
	record.Content = content

	// TXT and MX only receive provider defaults when inferred from a router rule
	applyDefaults := inferred || record.Type == types.A || record.Type == types.AAAA || record.Type == types.CNAME

	if raw, ok := props[PropertyProxied]; ok && raw != "" {
		proxied, err := strconv.ParseBool(raw)
		if err != nil {
			p.logger.Warnw("Ignoring invalid proxied value", "entity", entityName, "hostname", hostname, "proxied", raw)
		} else {
			record.Proxied = types.Bool(proxied)
		}
	}
	if record.Proxied == nil && applyDefaults {
		record.Proxied = types.Bool(p.defaultProxied(record.Type, inferred))
	}

	if raw, ok := props[PropertyTTL]; ok && raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl <= 0 {
			p.logger.Warnw("Ignoring invalid ttl value", "entity", entityName, "hostname", hostname, "ttl", raw)
		} else {
			record.TTL = ttl
		}
	}
	if record.TTL == 0 && applyDefaults {
		record.TTL = p.config.DefaultTTL
	}

	return record, nil
}

func (p *Parser) defaultProxied(recordType types.RecordType, inferred bool) bool {
	if inferred {
		return p.config.DefaultProxied
	}
	switch recordType {
	case types.A:
		return true
	case types.AAAA:
		return false
	default:
		return p.config.DefaultProxied
	}
}

// parseContent maps absent content and the public_ip token onto types.PublicIP and
// checks content that is required or has to be an IPv6 literal
func parseContent(recordType types.RecordType, raw string) (string, error) {
	if raw == "" || raw == types.PublicIP {
		if !recordType.IsAddress() {
			return "", fmt.Errorf("%w: %s record requires content", ErrInvalidRecord, recordType)
		}
		return types.PublicIP, nil
	}
	if recordType != types.AAAA {
		return raw, nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.Is6() || addr.Zone() != "" {
		return "", fmt.Errorf("%w: `%s` is not a valid IPv6 address", ErrInvalidRecord, raw)
	}
	return addr.String(), nil
}
