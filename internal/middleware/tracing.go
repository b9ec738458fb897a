package middleware

import (
	"fmt"

	"catnip/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RequestTracing opens a server span for each request, continuing any trace
// context the caller propagated and echoing the trace id back to the client.
// Handlers inherit the span through the user context, so repository work lands
// under the request span.
func RequestTracing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		span, ctx := observability.NewSpan(ctx, fmt.Sprintf("%s %s", c.Method(), c.Path()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.url", c.OriginalURL()),
			),
		)
		defer span.End()

		c.Set("X-Trace-ID", span.TraceID())
		c.SetUserContext(ctx)

		err := c.Next()

		span.AddAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))
		if err != nil {
			span.SetError(err)
		}
		if profile, ok := Profile(c); ok {
			span.AddAttributes(attribute.String("user.id", profile.ID))
		}
		return err
	}
}
