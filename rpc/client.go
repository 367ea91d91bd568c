package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/broadcast"
	"github.com/signalworks/ccdumper/domain"
)

// Client issues correlated requests over the broadcast channel and awaits
// the matching response. It carries no per-call state between calls; each
// Call is independently correlated and resolved at most once.
type Client struct {
	ch *broadcast.Channel
}

func NewClient(ch *broadcast.Channel) *Client {
	return &Client{ch: ch}
}

// Call invokes method on the process owning role and decodes the result
// into out (out may be nil to discard it). The role's standard timeout
// budget applies.
func (c *Client) Call(
	ctx context.Context,
	role domain.Role,
	method string,
	symbol string,
	out interface{},
) error {
	return c.CallTimeout(ctx, role, method, symbol, role.RequestTimeout(), out)
}

// CallTimeout is Call with an explicit timeout budget.
func (c *Client) CallTimeout(
	ctx context.Context,
	role domain.Role,
	method string,
	symbol string,
	timeout time.Duration,
	out interface{},
) error {
	requestID := uuid.NewString()

	// One-shot, predicate-filtered subscription. The buffered channel plus
	// unsubscribe-on-return gives at-most-one resolution even if a slow
	// server answers after the timeout: the orphaned response is dropped.
	resCh := make(chan Response, 1)
	unsubscribe := c.ch.Listen(role.ResponseTopic(), func(data json.RawMessage) {
		var res Response
		if err := json.Unmarshal(data, &res); err != nil {
			log.WithField("topic", role.ResponseTopic()).
				Errorf("can't decode rpc response: %v", err)
			return
		}
		if res.RequestID != requestID {
			return
		}
		select {
		case resCh <- res:
		default:
		}
	})
	defer unsubscribe()

	req := Request{RequestID: requestID, MethodName: method, Symbol: symbol}
	if err := c.ch.Broadcast(role.RequestTopic(), req); err != nil {
		return errors.Wrapf(err, "can't broadcast %s.%s", role, method)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Wrapf(
			domain.ErrRPCTimeout,
			"%s.%s requestId=%s after %s", role, method, requestID, timeout,
		)
	case res := <-resCh:
		if res.Error != "" {
			return errors.Errorf("%s.%s failed: %s", role, method, res.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.Result, out); err != nil {
			return errors.Wrapf(err, "can't decode %s.%s result", role, method)
		}
		return nil
	}
}
