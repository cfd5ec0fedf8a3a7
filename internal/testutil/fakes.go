// Package testutil holds fakes for the external collaborators.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"library/internal/domain"
)

// FakeProvider is an in-memory checkout provider. Sessions start open.
type FakeProvider struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]domain.SessionStatus
	requests  []domain.CheckoutRequest
	CreateErr error
	StatusErr map[string]error
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		sessions:  make(map[string]domain.SessionStatus),
		StatusErr: make(map[string]error),
	}
}

func (p *FakeProvider) CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return nil, &domain.ProviderError{Op: "create session", Err: p.CreateErr}
	}
	p.seq++
	id := fmt.Sprintf("cs_test_%d", p.seq)
	p.sessions[id] = domain.SessionStatusOpen
	p.requests = append(p.requests, req)
	return &domain.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (p *FakeProvider) GetSessionStatus(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.StatusErr[sessionID]; err != nil {
		return "", &domain.ProviderError{Op: "get session", Err: err}
	}
	status, ok := p.sessions[sessionID]
	if !ok {
		return "", &domain.ProviderError{Op: "get session", Err: errors.New("no such session: " + sessionID)}
	}
	return status, nil
}

func (p *FakeProvider) SetStatus(sessionID string, status domain.SessionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID] = status
}

func (p *FakeProvider) FailStatus(sessionID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusErr[sessionID] = err
}

func (p *FakeProvider) Requests() []domain.CheckoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CheckoutRequest(nil), p.requests...)
}

// RecordingNotifier keeps every sent text.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *RecordingNotifier) Send(ctx context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// FixedClock always reports noon on the given date.
func FixedClock(y int, m time.Month, d int) domain.Clock {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
