package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"flight-aggregator/internal/models"
)

// ErrTicketingStarted is returned when a ticketing run already exists for a
// booking log
var ErrTicketingStarted = errors.New("ticketing already started for booking log")

// WorkflowID is the ticketing workflow id of a booking log
func WorkflowID(bookingLogID string) string {
	return "ticketing-" + bookingLogID
}

// Ticketer runs TicketingWorkflow through a Temporal client and waits for it.
// Timeout bounds the wait only; the workflow keeps running and settles the
// booking on its own.
type Ticketer struct {
	Client    client.Client
	TaskQueue string
	Timeout   time.Duration
}

func NewTicketer(c client.Client, taskQueue string, timeout time.Duration) *Ticketer {
	return &Ticketer{Client: c, TaskQueue: taskQueue, Timeout: timeout}
}

func (t *Ticketer) Ticket(ctx context.Context, input models.TicketingInput) (*models.TicketingResult, error) {
	// a running workflow with the same id is an error, not a handle
	workflowOptions := client.StartWorkflowOptions{
		ID:                                       WorkflowID(input.BookingLogID),
		TaskQueue:                                t.TaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	we, err := t.Client.ExecuteWorkflow(ctx, workflowOptions, TicketingWorkflow, input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil, fmt.Errorf("%s: %w", workflowOptions.ID, ErrTicketingStarted)
		}
		return nil, fmt.Errorf("failed to start ticketing workflow: %w", err)
	}

	waitCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var result models.TicketingResult
	if err := we.Get(waitCtx, &result); err != nil {
		return nil, fmt.Errorf("ticketing workflow %s failed: %w", we.GetID(), err)
	}
	return &result, nil
}
