package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/SIGTERM-015/dnsfik/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"go.uber.org/zap"
)

// containerLister is the part of the docker client used to look up containers
type containerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// eventSource is the part of the docker client used to follow container lifecycle events
type eventSource interface {
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
}

// entityHandler reacts to containers appearing and disappearing
type entityHandler interface {
	OnEntityEvent(ctx context.Context, entity types.Entity) error
	OnEntityGone(entityID string)
}

// dockerEntities exposes the running containers as entities
type dockerEntities struct {
	client containerLister
}

// ListEntities returns every running container with its labels as metadata
func (d *dockerEntities) ListEntities(ctx context.Context) ([]types.Entity, error) {
	args := filters.NewArgs()
	args.Add("status", "running")
	containers, err := d.client.ContainerList(ctx, container.ListOptions{
		Filters: args,
	})
	if err != nil {
		return nil, err
	}

	entities := make([]types.Entity, 0, len(containers))
	for _, c := range containers {
		entities = append(entities, toEntity(&c))
	}
	return entities, nil
}

func processDockerEvent(ctx context.Context, event events.Message, client containerLister, handler entityHandler, logger *zap.SugaredLogger) error {
	switch event.Action {
	case events.ActionCreate, events.ActionStart:
		c, err := getContainerByID(ctx, client, event.Actor.ID)
		if err != nil {
			logger.Errorw("Could not obtain container details", "containerId", event.Actor.ID, "err", err)
			return nil
		}
		return handler.OnEntityEvent(ctx, toEntity(c))
	case events.ActionStop, events.ActionDie, events.ActionDestroy:
		handler.OnEntityGone(event.Actor.ID)
	default:
		logger.Warnw("Unsupported event", "event", event.Action)
	}

	return nil
}

func makeDockerChannels(ctx context.Context, client eventSource) (<-chan events.Message, <-chan error) {
	args := filters.NewArgs()
	args.Add("type", string(events.ContainerEventType))
	args.Add("event", string(events.ActionCreate))
	args.Add("event", string(events.ActionStart))
	args.Add("event", string(events.ActionStop))
	args.Add("event", string(events.ActionDie))
	args.Add("event", string(events.ActionDestroy))

	return client.Events(ctx, events.ListOptions{
		Filters: args,
	})
}

// getContainerByID retrieves a Container Object. Returns an error if the container is not found
func getContainerByID(ctx context.Context, client containerLister, id string) (*container.Summary, error) {
	args := filters.NewArgs()
	args.Add("id", id)
	containers, err := client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("no container with ID %s could be found", id)
	}
	return &containers[0], nil
}

func toEntity(c *container.Summary) types.Entity {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return types.Entity{
		ID:       c.ID,
		Name:     name,
		Metadata: c.Labels,
	}
}
