package google

import (
	"context"
	"fmt"

	"github.com/calprompt/calprompt/internal/config"
	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NewStoreFactory returns a calendar.StoreFactory building a Google Calendar store per request.
// The access token is used as is; expiry handling belongs to the caller. Extra options are
// appended to the client options, which lets tests point the client at a fake server.
func NewStoreFactory(cfg config.Calendar, clock utils.Clock, opts ...option.ClientOption) calendar.StoreFactory {
	calendarId := cfg.CalendarId
	if calendarId == "" {
		calendarId = calendar.PrimaryCalendarId
	}
	return func(ctx context.Context, accessToken string) (calendar.Store, error) {
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
		client := oauth2.NewClient(context.Background(), tokenSource)

		clientOpts := append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
		service, err := gcal.NewService(ctx, clientOpts...)
		if err != nil {
			err := fmt.Errorf("unable to create Calendar client: %w", err)
			log.Error(err)
			return nil, err
		}
		return newGoogleCalendar(service, calendarId, cfg.Timeout, clock), nil
	}
}
