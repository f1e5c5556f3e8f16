package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zenGate-Global/palmyra-orgs/platform/go/metrics"
)

type mwMetrics struct {
	red  *metrics.REDMetrics
	next Registry
}

var _ Registry = (*mwMetrics)(nil)

// WithMetrics decorates next with RED metrics registered on reg.
func WithMetrics(reg prometheus.Registerer, next Registry) Registry {
	return &mwMetrics{
		red:  metrics.NewREDMetrics(reg, "organizations", "organization registry", ErrorCode),
		next: next,
	}
}

func (mw *mwMetrics) Register(ctx context.Context, input CreateInput) (Organization, error) {
	rec := mw.red.Record("register")
	org, err := mw.next.Register(ctx, input)
	return org, rec(err)
}

func (mw *mwMetrics) Lookup(ctx context.Context, name string) (Organization, error) {
	rec := mw.red.Record("lookup")
	org, err := mw.next.Lookup(ctx, name)
	return org, rec(err)
}

func (mw *mwMetrics) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	rec := mw.red.Record("list")
	res, err := mw.next.List(ctx, opts)
	return res, rec(err)
}

func (mw *mwMetrics) Rebootstrap(ctx context.Context, name, email, password string) (Principal, error) {
	rec := mw.red.Record("rebootstrap")
	p, err := mw.next.Rebootstrap(ctx, name, email, password)
	return p, rec(err)
}

func (mw *mwMetrics) Orphans(ctx context.Context) ([]string, error) {
	rec := mw.red.Record("orphans")
	names, err := mw.next.Orphans(ctx)
	return names, rec(err)
}

func (mw *mwMetrics) Check(ctx context.Context, name string) (CheckResult, error) {
	rec := mw.red.Record("check")
	res, err := mw.next.Check(ctx, name)
	return res, rec(err)
}
