/*
Package dispatch delivers outbound side effects for committed transitions.

PURPOSE:
  Turns domain events into artifacts the rest of the organization sees:
  a PDF approval document for every finalized request, and best-effort
  email notifications for approvals and rejections.

DESIGN:
  The dispatcher is the EventSink the approval service emits into. Events
  are queued on a buffered channel and consumed by a single worker
  goroutine, so emitting never blocks a transition. A full queue drops
  the event with a log line rather than stalling the caller.

  Delivery is best effort. A failed render or send is logged and the
  event is discarded; the request's state is already committed and the
  document can be regenerated from the event data at any time.

USAGE:
  d := dispatch.New(renderer, mailer, contacts)
  svc.Events = d
  defer d.Close()  // drains the queue

SEE ALSO:
  - pdf.go: approval document rendering
  - mailer.go: SMTP delivery
*/
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/warp/leave-engine/leave"
)

const queueSize = 64

// ContactFunc resolves an employee id to an email address. Returning an
// error skips the notification for that event.
type ContactFunc func(ctx context.Context, employeeID string) (string, error)

// Dispatcher implements leave.EventSink with an async worker.
type Dispatcher struct {
	renderer *Renderer
	mailer   Mailer
	contacts ContactFunc
	from     string

	queue chan func(context.Context)
	done  chan struct{}
	once  sync.Once
}

// New starts the dispatch worker. renderer may be nil to skip documents,
// contacts may be nil to skip email.
func New(renderer *Renderer, mailer Mailer, contacts ContactFunc, from string) *Dispatcher {
	d := &Dispatcher{
		renderer: renderer,
		mailer:   mailer,
		contacts: contacts,
		from:     from,
		queue:    make(chan func(context.Context), queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	// Work items carry their own background context: the HTTP request
	// that triggered the event is long gone by the time we run.
	ctx := context.Background()
	for job := range d.queue {
		job(ctx)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	<-d.done
}

func (d *Dispatcher) enqueue(job func(context.Context)) {
	select {
	case d.queue <- job:
	default:
		log.Printf("dispatch: queue full, dropping event")
	}
}

// RequestApproved renders the approval document and notifies the employee.
func (d *Dispatcher) RequestApproved(_ context.Context, e leave.RequestApproved) {
	d.enqueue(func(ctx context.Context) {
		if d.renderer != nil {
			path, err := d.renderer.ApprovalDocument(e)
			if err != nil {
				log.Printf("dispatch: failed to render document %s for request %s: %v",
					e.DocumentID, e.RequestID, err)
			} else {
				log.Printf("dispatch: document %s written to %s", e.DocumentID, path)
			}
		}

		subject := "Leave request approved"
		body := fmt.Sprintf(
			"Your leave request %s has been approved.\n\nPeriod: %s to %s (%s working days)\nDocument: %s\n",
			e.RequestID, e.StartDate, e.EndDate, e.DayCount.String(), e.DocumentID)
		d.notify(ctx, e.EmployeeID, subject, body)
	})
}

// RequestRejected notifies the employee which stage rejected and why.
func (d *Dispatcher) RequestRejected(_ context.Context, e leave.RequestRejected) {
	d.enqueue(func(ctx context.Context) {
		subject := "Leave request rejected"
		body := fmt.Sprintf(
			"Your leave request %s was rejected at the %s stage.\n\nReason: %s\n",
			e.RequestID, e.Stage, e.Reason)
		d.notify(ctx, e.EmployeeID, subject, body)
	})
}

func (d *Dispatcher) notify(ctx context.Context, employeeID, subject, body string) {
	if d.mailer == nil || d.contacts == nil {
		return
	}
	to, err := d.contacts(ctx, employeeID)
	if err != nil {
		log.Printf("dispatch: no contact for employee %s: %v", employeeID, err)
		return
	}
	if err := d.mailer.Send(ctx, d.from, to, subject, body); err != nil {
		log.Printf("dispatch: failed to email %s: %v", to, err)
	}
}
