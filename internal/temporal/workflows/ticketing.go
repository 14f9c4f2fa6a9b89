package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"flight-aggregator/internal/models"
	"flight-aggregator/internal/temporal/activities"
)

const DefaultMaxTicketAttempts = 2

// ManualInterventionMessage is reported when a later leg fails after an
// earlier one was already ticketed
const ManualInterventionMessage = "outbound ticketed but return leg failed; manual intervention required"

// TicketingWorkflow books and tickets every leg of a confirmed booking.
// Legs run strictly in order and a leg only starts once the previous one
// is ticketed.
func TicketingWorkflow(ctx workflow.Context, input models.TicketingInput) (*models.TicketingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("TicketingWorkflow started", "bookingID", input.BookingID, "legs", len(input.SolutionIDs))

	// Supplier calls are not idempotent, never retry them
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	activityCtx := workflow.WithActivityOptions(ctx, activityOptions)

	// ledger writes are idempotent and must land even if the database blips
	ledgerCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    5,
		},
	})

	maxAttempts := input.MaxTicketAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxTicketAttempts
	}

	result := &models.TicketingResult{}
	for i, solutionID := range input.SolutionIDs {
		leg := ticketLeg(ctx, activityCtx, input, solutionID, maxAttempts)
		result.Legs = append(result.Legs, leg)

		if leg.Outcome == models.OutcomeTicketed {
			continue
		}

		if i == 0 {
			result.Outcome = leg.Outcome
			result.Message = leg.Message
			logger.Info("TicketingWorkflow stopped on first leg", "outcome", leg.Outcome)
			return settle(ctx, ledgerCtx, input.BookingID, result)
		}

		result.Outcome = models.OutcomePartiallyTicketed
		result.Message = ManualInterventionMessage
		logger.Error("Return leg failed after outbound was ticketed", "bookingID", input.BookingID, "leg", i)

		var ledgerActivities *activities.LedgerActivities
		err := workflow.ExecuteActivity(ledgerCtx, ledgerActivities.RecordManualIntervention,
			input.BookingID, input.ProviderCode, fmt.Sprintf("%s: %s", ManualInterventionMessage, leg.Message)).Get(ctx, nil)
		if err != nil {
			logger.Error("Failed to record manual intervention", "error", err)
		}
		return settle(ctx, ledgerCtx, input.BookingID, result)
	}

	result.Outcome = models.OutcomeTicketed
	logger.Info("TicketingWorkflow completed", "bookingID", input.BookingID)
	return settle(ctx, ledgerCtx, input.BookingID, result)
}

// settle writes the result onto the booking row before the workflow returns
func settle(ctx, ledgerCtx workflow.Context, bookingID string, result *models.TicketingResult) (*models.TicketingResult, error) {
	var ledgerActivities *activities.LedgerActivities
	var status string
	err := workflow.ExecuteActivity(ledgerCtx, ledgerActivities.RecordTicketingResult, bookingID, result).Get(ctx, &status)
	if err != nil {
		workflow.GetLogger(ctx).Error("Failed to record ticketing result", "bookingID", bookingID, "outcome", result.Outcome, "error", err)
		return nil, fmt.Errorf("record ticketing result for %s: %w", bookingID, err)
	}
	result.BookingStatus = status
	return result, nil
}

func ticketLeg(ctx, activityCtx workflow.Context, input models.TicketingInput, solutionID string, maxAttempts int) models.LegTicketing {
	logger := workflow.GetLogger(ctx)
	leg := models.LegTicketing{SolutionID: solutionID, Outcome: models.OutcomeFailed}

	var supplierActivities *activities.SupplierActivities

	var booked models.BookLegResult
	err := workflow.ExecuteActivity(activityCtx, supplierActivities.BookLeg, models.BookLegInput{
		ProviderCode: input.ProviderCode,
		SolutionID:   solutionID,
		Passengers:   input.Passengers,
		Contact:      input.Contact,
	}).Get(ctx, &booked)
	if err != nil {
		logger.Error("Book activity failed", "solutionID", solutionID, "error", err)
		leg.Message = err.Error()
		return leg
	}
	leg.Request, leg.Response = booked.Request, booked.Response
	if booked.Failed {
		leg.Message = booked.Message
		return leg
	}

	var ticket models.TicketLegResult
	acceptPriceChange := false
	for leg.TicketAttempts < maxAttempts {
		leg.TicketAttempts++
		ticket = models.TicketLegResult{}
		err := workflow.ExecuteActivity(activityCtx, supplierActivities.TicketLeg, models.TicketLegInput{
			ProviderCode:        input.ProviderCode,
			SolutionID:          solutionID,
			IsLCC:               booked.IsLCC,
			PNR:                 booked.PNR,
			SupplierReferenceID: booked.SupplierReferenceID,
			Passengers:          input.Passengers,
			Contact:             input.Contact,
			AcceptPriceChange:   acceptPriceChange,
		}).Get(ctx, &ticket)
		if err != nil {
			logger.Error("Ticket activity failed", "solutionID", solutionID, "error", err)
			leg.Message = err.Error()
			return leg
		}
		if ticket.Request != nil {
			leg.Request, leg.Response = ticket.Request, ticket.Response
		}
		if ticket.Status != models.TicketPriceChanged {
			break
		}
		logger.Info("Price changed during ticketing", "solutionID", solutionID, "attempt", leg.TicketAttempts)
		acceptPriceChange = true
	}

	switch ticket.Status {
	case models.TicketIssued:
	case models.TicketPriceChanged:
		leg.Outcome = models.OutcomePriceChangedExhausted
		leg.Message = "price changed on every ticket attempt"
		return leg
	default:
		leg.Message = ticket.Message
		return leg
	}

	order := models.OrderDetail{
		SolutionID:          solutionID,
		SupplierReferenceID: firstNonEmpty(ticket.SupplierReferenceID, booked.SupplierReferenceID),
		PNR:                 firstNonEmpty(ticket.PNR, booked.PNR),
		Status:              "Ticketed",
		TicketNumbers:       ticket.TicketNumbers,
	}

	var fetched models.OrderDetail
	err = workflow.ExecuteActivity(activityCtx, supplierActivities.FetchOrderDetails, models.OrderDetailsInput{
		ProviderCode:        input.ProviderCode,
		SolutionID:          solutionID,
		PNR:                 order.PNR,
		SupplierReferenceID: order.SupplierReferenceID,
	}).Get(ctx, &fetched)
	if err != nil {
		logger.Warn("Order details unavailable, using ticket response", "solutionID", solutionID, "error", err)
	} else {
		order = mergeOrder(order, fetched)
	}

	leg.Outcome = models.OutcomeTicketed
	leg.Order = order
	leg.Message = ""
	return leg
}

func mergeOrder(fromTicket, fetched models.OrderDetail) models.OrderDetail {
	fetched.SolutionID = fromTicket.SolutionID
	fetched.PNR = firstNonEmpty(fetched.PNR, fromTicket.PNR)
	fetched.SupplierReferenceID = firstNonEmpty(fetched.SupplierReferenceID, fromTicket.SupplierReferenceID)
	fetched.Status = firstNonEmpty(fetched.Status, fromTicket.Status)
	if len(fetched.TicketNumbers) == 0 {
		fetched.TicketNumbers = fromTicket.TicketNumbers
	}
	return fetched
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
