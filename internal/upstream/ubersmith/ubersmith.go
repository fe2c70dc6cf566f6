// Package ubersmith wraps the ticketing service's posts API used when an
// operator escalates a monitoring event into a support ticket.
package ubersmith

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/upstream"
)

// Aggregator issues ticket updates against the ticketing service.
type Aggregator struct {
	client *upstream.Client
	log    *logging.Logger
}

// New creates a ticketing aggregator.
func New(client *upstream.Client, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewDefault("ubersmith")
	}
	return &Aggregator{client: client, log: log}
}

// TicketPost is the body of one ticket update.
type TicketPost struct {
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Documentation string `json:"documentation,omitempty"`
	Visible       int    `json:"visible"`
	TimeSpent     int    `json:"time_spent"`
}

// PostResult is the ticketing service's response envelope.
type PostResult struct {
	Status       bool   `json:"status"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    int    `json:"error_code"`
}

// PostTicketUpdate appends a post to the given ticket. A response with
// status=false is returned to the caller as data, not as an error, so the
// browser helper can surface the service's message.
func (a *Aggregator) PostTicketUpdate(ctx context.Context, ticketID int, post TicketPost) (PostResult, error) {
	path := "/tickets/ticketid/" + strconv.Itoa(ticketID) + "/posts"

	resp, err := a.client.Post(ctx, path, post)
	if err != nil {
		return PostResult{}, fmt.Errorf("post ticket update: %w", err)
	}

	var result PostResult
	if err := upstream.DecodeResponse(resp, &result); err != nil {
		return PostResult{}, fmt.Errorf("post ticket update: %w", err)
	}
	if !result.Status {
		a.log.WithContext(ctx).WithFields(map[string]interface{}{
			"ticket_id": ticketID,
			"error":     result.ErrorMessage,
		}).Warn("ticketing service rejected post")
	}
	return result, nil
}
