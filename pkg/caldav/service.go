package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/calprompt/calprompt/internal/config"
	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/emersion/go-webdav/caldav"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var ErrMissingURL = errors.New("caldav calendar URL is not configured")

// NewStoreFactory returns a calendar.StoreFactory building a CalDAV store per request. cfg.CalDAVURL
// is the URL of the calendar collection itself. A nil base transport means http.DefaultTransport.
func NewStoreFactory(cfg config.Calendar, clock utils.Clock, base http.RoundTripper) calendar.StoreFactory {
	return func(ctx context.Context, accessToken string) (calendar.Store, error) {
		if cfg.CalDAVURL == "" {
			return nil, ErrMissingURL
		}
		collection, err := url.Parse(cfg.CalDAVURL)
		if err != nil {
			return nil, fmt.Errorf("invalid caldav URL %q: %w", cfg.CalDAVURL, err)
		}

		status := &statusTransport{
			next: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
				Base:   base,
			},
		}
		client, err := caldav.NewClient(&http.Client{Transport: status}, cfg.CalDAVURL)
		if err != nil {
			err := fmt.Errorf("unable to create CalDAV client: %w", err)
			log.Error(err)
			return nil, err
		}
		return newCalDAVCalendar(client, status, collection.Path, cfg.Timeout, clock), nil
	}
}

// statusTransport remembers the status code of the latest response so failures can be classified.
type statusTransport struct {
	next   http.RoundTripper
	status atomic.Int32
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.status.Store(0)
		return nil, err
	}
	t.status.Store(int32(resp.StatusCode))
	return resp, nil
}

func (t *statusTransport) last() int {
	return int(t.status.Load())
}
