// Package reconciler brings the records at the DNS provider in line with the records
// declared in container metadata.
//
// The reconciler only decides which mutations are needed; applying them is left to
// the task queue, which serializes every write to the provider. Records are never
// deleted, containers that go away leave their records behind.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SIGTERM-015/dnsfik/publicip"
	"github.com/SIGTERM-015/dnsfik/queue"
	"github.com/SIGTERM-015/dnsfik/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Parser turns entity metadata into desired records
type Parser interface {
	Parse(entityName string, metadata map[string]string) []types.DesiredRecord
}

// Resolver returns the current public address of a family
type Resolver interface {
	Resolve(ctx context.Context, family types.RecordType) (string, error)
}

// RecordGetter reads the observed state of a record
type RecordGetter interface {
	Get(ctx context.Context, name string, recordType types.RecordType) (*types.ObservedRecord, error)
}

// Enqueuer accepts mutations for asynchronous application
type Enqueuer interface {
	Enqueue(task *queue.Task) error
}

// EntityLister enumerates the entities that are currently running
type EntityLister interface {
	ListEntities(ctx context.Context) ([]types.Entity, error)
}

// Config holds the tunables of the Reconciler
type Config struct {
	// RequestTimeout bounds every call reading the observed state
	RequestTimeout time.Duration
}

// Reconciler diffs desired against observed records and enqueues the difference
type Reconciler struct {
	parser   Parser
	resolver Resolver
	records  RecordGetter
	tasks    Enqueuer
	entities EntityLister
	config   Config
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	lastKnown map[types.RecordType]string
}

// New returns a Reconciler wired to its collaborators
func New(parser Parser, resolver Resolver, records RecordGetter, tasks Enqueuer, entities EntityLister, config Config, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		parser:    parser,
		resolver:  resolver,
		records:   records,
		tasks:     tasks,
		entities:  entities,
		config:    config,
		logger:    logger.Named("reconciler"),
		lastKnown: map[types.RecordType]string{},
	}
}

// OnEntityEvent reconciles the records declared by one entity.
// It fails without enqueueing anything when the public IPv4 address is needed but unavailable.
// A missing IPv6 address only skips the records that need it.
func (r *Reconciler) OnEntityEvent(ctx context.Context, entity types.Entity) error {
	name := entityName(entity)
	desired := r.parser.Parse(name, entity.Metadata)
	if len(desired) == 0 {
		r.logger.Debugw("Entity declares no records", "entity", name)
		return nil
	}

	resolved, err := r.resolve(ctx, name, desired)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", name, err)
	}

	tasks, err := r.diff(ctx, name, resolved)
	r.enqueue(tasks)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", name, err)
	}
	return nil
}

// OnEntityGone is called for entities that stopped or were removed.
// Their records are left in place.
func (r *Reconciler) OnEntityGone(entityID string) {
	r.logger.Debugw("Entity gone, leaving its records in place", "entity", entityID)
}

// SyncAll reconciles every running entity. A failing entity does not stop the others,
// all failures are returned together.
func (r *Reconciler) SyncAll(ctx context.Context) error {
	entities, err := r.entities.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	r.logger.Infow("Reconciling all entities", "count", len(entities))

	var errs error
	for _, entity := range entities {
		if err := r.OnEntityEvent(ctx, entity); err != nil {
			r.logger.Errorw("Failed to reconcile entity", "entity", entityName(entity), "metadata", entity.Metadata, "err", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// OnPeriodicAddressCheck resolves both address families and, for every family whose
// address changed since the previous check, reconciles the records of the whole fleet
// that use the public address.
// Failing to resolve the IPv4 address fails the check, IPv6 failures are only logged.
// Errors of the fleet re-check do not stop the other family from being checked, they
// are returned together.
func (r *Reconciler) OnPeriodicAddressCheck(ctx context.Context) error {
	v4, err := r.resolver.Resolve(ctx, types.A)
	if err != nil {
		return err
	}
	errs := r.observeAddress(ctx, types.A, v4)

	v6, err := r.resolver.Resolve(ctx, types.AAAA)
	if err != nil {
		r.logger.Warnw("IPv6 address check failed", "err", err)
		return errs
	}
	return multierr.Append(errs, r.observeAddress(ctx, types.AAAA, v6))
}

// observeAddress records the latest address of a family and rechecks the fleet when it changed
func (r *Reconciler) observeAddress(ctx context.Context, family types.RecordType, address string) error {
	r.mu.Lock()
	previous := r.lastKnown[family]
	r.lastKnown[family] = address
	r.mu.Unlock()

	if previous == address {
		return nil
	}
	r.logger.Infow("Public address changed", "family", family, "previous", previous, "address", address)
	return r.recheckFleet(ctx, family, address)
}

// recheckFleet reconciles the public address records of the given family for every running entity
func (r *Reconciler) recheckFleet(ctx context.Context, family types.RecordType, address string) error {
	entities, err := r.entities.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}

	var errs error
	for _, entity := range entities {
		name := entityName(entity)
		selected := []types.DesiredRecord{}
		for _, record := range r.parser.Parse(name, entity.Metadata) {
			if record.Type == family && record.UsesPublicIP() {
				record.Content = address
				selected = append(selected, record)
			}
		}
		if len(selected) == 0 {
			continue
		}

		tasks, err := r.diff(ctx, name, selected)
		r.enqueue(tasks)
		if err != nil {
			r.logger.Errorw("Failed to recheck entity", "entity", name, "metadata", entity.Metadata, "err", err)
			errs = multierr.Append(errs, fmt.Errorf("recheck %s: %w", name, err))
		}
	}
	return errs
}

// resolve replaces public address placeholders with the current address.
// Records needing an IPv6 address are dropped when it cannot be resolved.
func (r *Reconciler) resolve(ctx context.Context, entity string, desired []types.DesiredRecord) ([]types.DesiredRecord, error) {
	type result struct {
		address string
		err     error
	}
	results := map[types.RecordType]result{}

	resolved := make([]types.DesiredRecord, 0, len(desired))
	for _, record := range desired {
		if !record.UsesPublicIP() {
			resolved = append(resolved, record)
			continue
		}

		res, ok := results[record.Type]
		if !ok {
			res.address, res.err = r.resolver.Resolve(ctx, record.Type)
			results[record.Type] = res
		}
		if res.err != nil {
			if publicip.IsCritical(res.err) {
				return nil, res.err
			}
			r.logger.Warnw("Skipping record, public address unavailable", "entity", entity, "record", record.Key().String(), "err", res.err)
			continue
		}
		record.Content = res.address
		resolved = append(resolved, record)
	}
	return resolved, nil
}

// diff compares each desired record with its observed counterpart and returns the tasks needed.
// Records whose observed state cannot be read are skipped and reported in the error.
func (r *Reconciler) diff(ctx context.Context, entity string, desired []types.DesiredRecord) ([]*queue.Task, error) {
	var errs error
	tasks := []*queue.Task{}
	for i := range desired {
		record := &desired[i]
		observed, err := r.get(ctx, record)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("get %s: %w", record.Key(), err))
			continue
		}
		if task := r.taskFor(entity, record, observed); task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, errs
}

func (r *Reconciler) get(ctx context.Context, record *types.DesiredRecord) (*types.ObservedRecord, error) {
	if r.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RequestTimeout)
		defer cancel()
	}
	return r.records.Get(ctx, record.Hostname, record.Type)
}

// taskFor returns nil when the observed record already matches.
// Fields the desired record leaves unset are not compared and keep their observed value.
// The TTL of proxied records is not compared.
func (r *Reconciler) taskFor(entity string, desired *types.DesiredRecord, observed *types.ObservedRecord) *queue.Task {
	record := types.Record{
		Name:    desired.Hostname,
		Type:    desired.Type,
		Content: desired.Content,
		TTL:     desired.TTL,
		Proxied: desired.Proxied,
	}
	if observed == nil {
		return queue.NewCreateTask(entity, record)
	}

	proxied := observed.Proxied
	if desired.Proxied != nil {
		proxied = desired.Proxied
	}

	changed := observed.Content != desired.Content
	// The provider forces the TTL of proxied records to automatic
	if desired.TTL > 0 && desired.TTL != observed.TTL && (proxied == nil || !*proxied) {
		changed = true
	}
	if desired.Proxied != nil && (observed.Proxied == nil || *observed.Proxied != *desired.Proxied) {
		changed = true
	}
	if !changed {
		r.logger.Debugw("Record up to date", "entity", entity, "record", desired.Key().String())
		return nil
	}

	if record.TTL == 0 {
		record.TTL = observed.TTL
	}
	if record.Proxied == nil {
		record.Proxied = observed.Proxied
	}
	return queue.NewUpdateTask(entity, observed.ID, record)
}

func (r *Reconciler) enqueue(tasks []*queue.Task) {
	for _, task := range tasks {
		if err := r.tasks.Enqueue(task); err != nil {
			r.logger.Errorw("Failed to enqueue task", "task", task.ID, "payload", task.Payload, "err", err)
		}
	}
}

func entityName(entity types.Entity) string {
	if entity.Name != "" {
		return entity.Name
	}
	return entity.ID
}
