// Package activitymap flattens session activity events into records that
// audit stores and log pipelines can index.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-omnisfera"
)

const (
	MetadataKeyActorType    = "actor_type"
	MetadataKeyImpersonated = "impersonated"
)

const (
	defaultChannel = "omnisfera.auth"
	defaultActorID = "anonymous"
)

// Record is the flat shape of an auth.ActivityEvent.
type Record struct {
	ActorID     string         `json:"actor_id"`
	Verb        string         `json:"verb"`
	ObjectID    string         `json:"object_id,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Channel     string         `json:"channel"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel       string
	actorFallback string
}

func WithChannel(channel string) Option {
	return func(o *options) {
		if channel = strings.TrimSpace(channel); channel != "" {
			o.channel = channel
		}
	}
}

// WithActorFallback sets the actor id used when the event has none, as for
// logins with an unknown email.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			o.actorFallback = actorID
		}
	}
}

// Normalize converts an event into a Record. The actor of an impersonation
// event is the admin, the object is the assumed member.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{channel: defaultChannel, actorFallback: defaultActorID}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	metadata := make(map[string]any, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}
	if isImpersonation(event.EventType) {
		metadata[MetadataKeyImpersonated] = true
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return Record{
		ActorID:     firstNonEmpty(strings.TrimSpace(event.Actor.ID), o.actorFallback),
		Verb:        string(event.EventType),
		ObjectID:    strings.TrimSpace(event.UserID),
		WorkspaceID: strings.TrimSpace(event.WorkspaceID),
		Channel:     o.channel,
		Metadata:    metadata,
		OccurredAt:  occurredAt.UTC(),
	}
}

func isImpersonation(t auth.ActivityEventType) bool {
	switch t {
	case auth.ActivityEventImpersonationStart,
		auth.ActivityEventImpersonationEnd,
		auth.ActivityEventImpersonationFailure:
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
