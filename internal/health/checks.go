package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type StripePinger interface {
	Ping(ctx context.Context) error
}

// Endpoints are the dependencies probed by /health. Database and Redis are
// required; Stripe and the upstream services only degrade the status.
type Endpoints struct {
	DB        Pinger
	Redis     redis.Cmdable
	Stripe    StripePinger
	Upstreams map[string]string
}

func NewHealthHandler(version string, endpoints *Endpoints) (*health.Health, error) {
	checks := []health.Config{
		{
			Name:    "database",
			Timeout: 3 * time.Second,
			Check: func(ctx context.Context) error {
				if endpoints.DB == nil {
					return fmt.Errorf("database is not initialized")
				}
				return endpoints.DB.PingContext(ctx)
			},
		},
		{
			Name:    "redis",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				if endpoints.Redis == nil {
					return fmt.Errorf("redis client is not initialized")
				}
				return endpoints.Redis.Ping(ctx).Err()
			},
		},
	}

	if endpoints.Stripe != nil {
		checks = append(checks, health.Config{
			Name:      "stripe",
			Timeout:   5 * time.Second,
			SkipOnErr: true,
			Check:     endpoints.Stripe.Ping,
		})
	}

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	for name, url := range endpoints.Upstreams {
		checks = append(checks, health.Config{
			Name:      name,
			Timeout:   3 * time.Second,
			SkipOnErr: true,
			Check:     upstreamCheck(client, url),
		})
	}

	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    "storefront-core",
			Version: version,
		}),
		health.WithSystemInfo(),
		health.WithChecks(checks...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}

// upstreamCheck treats any response below 500 as reachable.
func upstreamCheck(client *http.Client, url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building health request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("upstream unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("upstream returned status %d", resp.StatusCode)
		}

		return nil
	}
}
