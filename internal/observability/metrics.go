// Package observability exposes Prometheus metrics for the auth flows and the
// HTTP server that serves them.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultReused  = "reused"
	ResultLimited = "rate_limited"
)

// Metrics holds the auth counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RegisterTotal       *prometheus.CounterVec
	LoginTotal          *prometheus.CounterVec
	RefreshTotal        *prometheus.CounterVec
	LogoutTotal         prometheus.Counter
	PasswordChangeTotal *prometheus.CounterVec
	AuthenticateTotal   *prometheus.CounterVec
}

// NewMetrics creates the auth metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegisterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_register_total",
			Help: "Registration attempts by result",
		}, []string{"result"}),
		LoginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_login_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_refresh_total",
			Help: "Refresh token exchanges by result",
		}, []string{"result"}),
		LogoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidtube_auth_logout_total",
			Help: "Completed logouts",
		}),
		PasswordChangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_password_change_total",
			Help: "Password change attempts by result",
		}, []string{"result"}),
		AuthenticateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_authenticate_total",
			Help: "Bearer credential checks on protected requests by result",
		}, []string{"result"}),
	}
	reg.MustRegister(m.RegisterTotal, m.LoginTotal, m.RefreshTotal, m.LogoutTotal, m.PasswordChangeTotal, m.AuthenticateTotal)
	return m
}

func (m *Metrics) Register(result string) {
	if m != nil {
		m.RegisterTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Login(result string) {
	if m != nil {
		m.LoginTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Refresh(result string) {
	if m != nil {
		m.RefreshTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Logout() {
	if m != nil {
		m.LogoutTotal.Inc()
	}
}

func (m *Metrics) PasswordChange(result string) {
	if m != nil {
		m.PasswordChangeTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Authenticate(result string) {
	if m != nil {
		m.AuthenticateTotal.WithLabelValues(result).Inc()
	}
}
