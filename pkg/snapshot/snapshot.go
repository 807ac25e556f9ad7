// Package snapshot performs the one-shot fetch of full fleet state used to
// seed the store at startup and to repair it after a reconnect.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/identity"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const pageFetchConcurrency = 4

type Loader struct {
	URL         string
	PageSize    int
	MaxAttempts int
	Timeout     time.Duration

	Tokens     identity.TokenSource
	HTTPClient *http.Client
}

// Fetch retrieves every page of the live fleet snapshot. The first page is
// fetched with exponential backoff, the remaining pages concurrently. A
// fresh bearer token is attached per request.
func (l *Loader) Fetch(ctx context.Context) ([]fleet.VehicleLiveState, error) {
	requestContext := ctx
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		requestContext, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	var first fleet.PagedResult[fleet.VehicleLiveState]

	retryBackoff := backoff.NewExponentialBackOff()
	operation := func() error {
		var err error
		first, err = l.fetchPage(requestContext, 1)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(retryBackoff, uint64(l.maxAttempts()-1)), requestContext)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	states := first.Items

	totalPages := first.TotalPages
	if totalPages == 0 && first.PageSize > 0 {
		totalPages = (first.TotalItems + first.PageSize - 1) / first.PageSize
	}

	if totalPages > 1 {
		var mu sync.Mutex

		fetchPool := pool.New().WithErrors().WithMaxGoroutines(pageFetchConcurrency)
		for page := 2; page <= totalPages; page++ {
			fetchPool.Go(func() error {
				result, err := l.fetchPage(requestContext, page)
				if err != nil {
					return err
				}

				mu.Lock()
				states = append(states, result.Items...)
				mu.Unlock()

				return nil
			})
		}

		if err := fetchPool.Wait(); err != nil {
			return nil, err
		}
	}

	log.Info().Int("vehicles", len(states)).Msg("Fetched fleet snapshot")

	return states, nil
}

func (l *Loader) fetchPage(ctx context.Context, page int) (fleet.PagedResult[fleet.VehicleLiveState], error) {
	var result fleet.PagedResult[fleet.VehicleLiveState]

	endpoint, err := url.Parse(l.URL)
	if err != nil {
		return result, err
	}

	query := endpoint.Query()
	query.Set("page", strconv.Itoa(page))
	if l.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(l.PageSize))
	}
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return result, err
	}

	if l.Tokens != nil {
		token, err := l.Tokens.Token(ctx)
		if err != nil {
			return result, err
		}
		request.Header.Set("Authorization", "Bearer "+token)
	}

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return result, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return result, fmt.Errorf("snapshot fetch returned status %d", response.StatusCode)
	}

	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return result, err
	}

	return result, nil
}

func (l *Loader) maxAttempts() int {
	if l.MaxAttempts <= 0 {
		return 1
	}
	return l.MaxAttempts
}
