package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const threadPathPrefix = "/thread/"

// Handle serves API Gateway proxy events with the same routes and bodies as
// Router.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	cid := correlationID(event.Headers)

	res := h.dispatch(ctx, event)
	h.logger.InfoContext(ctx, "request",
		"method", event.HTTPMethod,
		"path", event.Path,
		"status", res.status,
		"correlation_id", cid,
	)

	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: cid,
		},
		Body: string(res.encode()),
	}, nil
}

func (h *Handler) dispatch(ctx context.Context, event events.APIGatewayProxyRequest) result {
	path := event.Path
	if path == "" {
		path = "/"
	}

	var route func() result
	switch {
	case path == "/":
		route = func() result { return h.root(ctx) }
	case path == "/health":
		route = func() result { return h.health(ctx) }
	case strings.HasPrefix(path, threadPathPrefix):
		identifier, ok := event.PathParameters["numero"]
		if !ok {
			identifier = strings.TrimPrefix(path, threadPathPrefix)
		}
		if identifier == "" || strings.Contains(identifier, "/") {
			return notFound()
		}
		route = func() result { return h.thread(ctx, identifier) }
	default:
		return notFound()
	}

	if event.HTTPMethod != http.MethodGet {
		return methodNotAllowed()
	}
	return h.guard(ctx, route)
}
