package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/mozilla/clouseau/internal/aggregate"
	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/internal/navigation"
	"github.com/mozilla/clouseau/internal/render"
)

// DeepLink is the selection carried by the page URL
type DeepLink struct {
	Product   string
	Date      string
	Signature string
	// HasSignature is set when the link names a signature, possibly ""
	HasSignature bool
}

// Page is a rendered snapshot of one session
type Page struct {
	State   navigation.State `json:"state"`
	View    render.View      `json:"view"`
	Loading bool             `json:"loading"`
}

// DashboardService drives navigation sessions and renders their state
type DashboardService interface {
	// Open returns the page for sid, starting a session when none exists
	Open(ctx context.Context, sid string, link DeepLink) (*Page, error)
	// Dispatch applies a named user event to the session
	Dispatch(ctx context.Context, sid, kind, value string) (*Page, error)
	// View renders the current state of the session
	View(ctx context.Context, sid string) (*Page, error)
	// Catalog returns the catalog loaded by the session
	Catalog(ctx context.Context, sid string) (domain.Catalog, error)
}

type dashboardService struct {
	sessions *navigation.Manager
	renderer *render.Renderer
	channel  string
	wait     time.Duration
}

// NewDashboardService creates a new DashboardService. wait bounds how long a
// request waits for outstanding fetches before rendering a loading page.
func NewDashboardService(sessions *navigation.Manager, renderer *render.Renderer, channel string, wait time.Duration) DashboardService {
	return &dashboardService{
		sessions: sessions,
		renderer: renderer,
		channel:  channel,
		wait:     wait,
	}
}

// Open reuses the session for sid when it exists, dispatching any deep-link
// difference as select events; otherwise it initializes a new session
func (s *dashboardService) Open(ctx context.Context, sid string, link DeepLink) (*Page, error) {
	sess, err := s.sessions.Get(sid)
	if errors.Is(err, common.ErrSessionNotFound) {
		sess = s.sessions.Create(sid)
		if err := sess.Dispatch(ctx, navigation.Initialize(link.Product, s.channel, link.Date)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		current := sess.Snapshot()
		if link.Product != "" && link.Product != current.Product {
			if err := sess.Dispatch(ctx, navigation.SelectProduct(link.Product)); err != nil {
				return nil, err
			}
		}
		if link.Date != "" && link.Date != current.Date {
			if err := sess.Dispatch(ctx, navigation.SelectDate(link.Date)); err != nil {
				return nil, err
			}
		}
	}

	if link.HasSignature {
		// the signature can only be resolved against a loaded dataset
		if _, loading, err := s.settle(ctx, sess); err != nil {
			return nil, err
		} else if !loading {
			if err := sess.Dispatch(ctx, navigation.SelectSignature(link.Signature)); err != nil {
				return nil, err
			}
		}
	}
	return s.page(ctx, sess)
}

// Dispatch applies a named user event
func (s *dashboardService) Dispatch(ctx context.Context, sid, kind, value string) (*Page, error) {
	ev, err := navigation.ParseUserEvent(kind, value)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(sid)
	if err != nil {
		return nil, err
	}
	if err := sess.Dispatch(ctx, ev); err != nil {
		return nil, err
	}
	return s.page(ctx, sess)
}

// View renders the session without changing it
func (s *dashboardService) View(ctx context.Context, sid string) (*Page, error) {
	sess, err := s.sessions.Get(sid)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, sess)
}

// Catalog returns the session catalog once its fetch has settled
func (s *dashboardService) Catalog(ctx context.Context, sid string) (domain.Catalog, error) {
	sess, err := s.sessions.Get(sid)
	if err != nil {
		return domain.Catalog{}, err
	}
	st, _, err := s.settle(ctx, sess)
	if err != nil {
		return domain.Catalog{}, err
	}
	return st.Catalog, nil
}

// settle waits up to s.wait for the session to go idle. Running out of time
// is not an error: the caller renders what is loaded and reports loading.
func (s *dashboardService) settle(ctx context.Context, sess *navigation.Session) (navigation.State, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	st, err := sess.WaitIdle(waitCtx)
	if err == nil {
		return st, false, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return st, true, nil
	}
	return st, false, err
}

func (s *dashboardService) page(ctx context.Context, sess *navigation.Session) (*Page, error) {
	st, loading, err := s.settle(ctx, sess)
	if err != nil {
		return nil, err
	}

	view := aggregate.Aggregate(st.Dataset, st.Signature, st.HasSignature)
	sel := render.Selection{Product: st.Product, Date: st.Date, Error: st.LastError}
	return &Page{
		State:   st,
		View:    s.renderer.Render(st.Catalog, view, sel, deepLinks(st)),
		Loading: loading,
	}, nil
}

// deepLinks builds menu hrefs that reproduce the selection an entry issues
func deepLinks(st navigation.State) render.LinkFunc {
	return func(event, value string) string {
		q := url.Values{}
		q.Set("product", st.Product)
		q.Set("date", st.Date)
		switch event {
		case render.EventSelectProduct:
			q.Set("product", value)
		case render.EventSelectDate:
			q.Set("date", value)
		case render.EventSelectSignature:
			q.Set("signature", value)
		}
		return "?" + q.Encode()
	}
}
