package app

import "live-quiz-service/internal/domain"

// Target says who receives an outbound event.
type Target int

const (
	// ToRoom delivers to every connection bound to the room.
	ToRoom Target = iota
	// ToConn delivers to a single connection.
	ToConn
)

// Outbound is one event produced by a room transition.
type Outbound struct {
	Target Target
	Conn   domain.ConnID
	Event  domain.Event
}

// Effects describes everything a transition wants done outside the room: events to
// deliver, in order, and audit records to persist on a best-effort basis.
type Effects struct {
	Out   []Outbound
	Audit []domain.AuditRecord
}

func (e *Effects) broadcast(typ domain.EventType, payload any) {
	e.Out = append(e.Out, Outbound{Target: ToRoom, Event: domain.Event{Type: typ, Payload: payload}})
}

func (e *Effects) unicast(conn domain.ConnID, typ domain.EventType, payload any) {
	if conn == "" {
		return
	}
	e.Out = append(e.Out, Outbound{Target: ToConn, Conn: conn, Event: domain.Event{Type: typ, Payload: payload}})
}

func (e *Effects) record(rec domain.AuditRecord) {
	e.Audit = append(e.Audit, rec)
}
