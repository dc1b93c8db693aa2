package zarinpal

import (
	"context"
	"fmt"
	"strings"
)

const sessionsQuery = `query Sessions($terminal_id: ID!, $filter: FilterEnum, $limit: Int, $offset: Int) {
  Session(terminal_id: $terminal_id, filter: $filter, limit: $limit, offset: $offset) {
    id
    status
    amount
    description
    created_at
  }
}`

const addRefundMutation = `mutation AddRefund($session_id: ID!, $amount: BigInteger!, $description: String, $method: InstantPayoutActionTypeEnum, $reason: RefundReasonEnum) {
  resource: AddRefund(session_id: $session_id, amount: $amount, description: $description, method: $method, reason: $reason) {
    terminal_id
    id
    amount
    timeline {
      refund_amount
      refund_time
      refund_status
    }
  }
}`

type graphQLRequest struct {
	Query     string `json:"query"`
	Variables any    `json:"variables"`
}

type graphQLResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// Transactions lists the sessions of a terminal.
func (c *Client) Transactions(ctx context.Context, req TransactionsRequest) ([]Session, error) {
	data, err := postGraphQL[struct {
		Session []Session `json:"Session"`
	}](c, ctx, "sessions", sessionsQuery, req)
	if err != nil {
		return nil, err
	}
	return data.Session, nil
}

// Refund requests a refund for a paid session.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	data, err := postGraphQL[struct {
		Resource *RefundResponse `json:"resource"`
	}](c, ctx, "refund", addRefundMutation, req)
	if err != nil {
		return nil, err
	}
	if data.Resource == nil {
		return nil, ErrEmptyResponse
	}
	return data.Resource, nil
}

func postGraphQL[T any](c *Client, ctx context.Context, op, query string, variables any) (*T, error) {
	if c.cfg.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	body, err := codec.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	raw, status, err := c.do(ctx, c.graphQLURL, body, c.cfg.AccessToken)
	if err != nil {
		return nil, err
	}

	var resp graphQLResponse[T]
	if err := decodeObject(raw, &resp); err != nil {
		if !isSuccess(status) {
			return nil, &GatewayError{Message: strings.TrimSpace(string(raw)), StatusCode: status}
		}
		return nil, &DecodeError{Op: op, Err: err}
	}

	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		c.logger.Warn("zarinpal graphql error", "operation", op, "errors", messages)
		return nil, &GatewayError{Message: strings.Join(messages, "; "), StatusCode: status}
	}
	if !isSuccess(status) {
		return nil, &GatewayError{Message: fmt.Sprintf("graphql %s failed", op), StatusCode: status}
	}
	if resp.Data == nil {
		return nil, ErrEmptyResponse
	}

	return resp.Data, nil
}
