package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/metrics"
)

type mwMetrics struct {
	red  *metrics.REDMetrics
	next Authenticator
}

var _ Authenticator = (*mwMetrics)(nil)

// WithMetrics decorates next with RED metrics registered on reg.
func WithMetrics(reg prometheus.Registerer, next Authenticator) Authenticator {
	return &mwMetrics{
		red:  metrics.NewREDMetrics(reg, "auth", "authentication", ErrorCode),
		next: next,
	}
}

func (mw *mwMetrics) Authenticate(ctx context.Context, organization, email, password string) (Session, error) {
	rec := mw.red.Record("authenticate")
	session, err := mw.next.Authenticate(ctx, organization, email, password)
	return session, rec(err)
}

func (mw *mwMetrics) AdminLogin(ctx context.Context, organization, email, password string) (Session, error) {
	rec := mw.red.Record("admin_login")
	session, err := mw.next.AdminLogin(ctx, organization, email, password)
	return session, rec(err)
}
