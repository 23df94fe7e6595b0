package service

import (
	"time"

	"nexus/internal/websocket"

	"github.com/google/uuid"
)

// ActivityPublisher fans activity events out to connected dashboards.
type ActivityPublisher interface {
	Publish(event websocket.Event)
}

type Activity struct {
	Action  string    `json:"action"`
	ActorID uuid.UUID `json:"actor_id"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail,omitempty"`
}

const (
	ActivityRoleRequested     = "role_request.submitted"
	ActivityRoleReviewed      = "role_request.reviewed"
	ActivityRoleGranted       = "role.granted"
	ActivityRoleRevoked       = "role.revoked"
	ActivityDefinitionChanged = "role_definition.changed"
	ActivityOutputRegistered  = "ai_output.registered"
	ActivityOutputAdvanced    = "ai_output.advanced"
	ActivityProjectChanged    = "project.changed"
	ActivityTaskChanged       = "task.changed"
)

type nopPublisher struct{}

func (nopPublisher) Publish(websocket.Event) {}

func publishActivity(p ActivityPublisher, a Activity) {
	if p == nil {
		return
	}
	p.Publish(websocket.Event{Type: websocket.EventActivity, Payload: a, At: time.Now()})
}
