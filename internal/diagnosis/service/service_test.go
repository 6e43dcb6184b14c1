package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"akashic/internal/audit"
	"akashic/internal/diagnosis"
	"akashic/internal/diagnosis/store"
	dErrors "akashic/pkg/domain-errors"
)

// fakeProvider returns a canned result and records what it was asked.
type fakeProvider struct {
	result      string
	err         error
	calls       int
	lastPrompt  string
	lastMaxToks int
}

func (f *fakeProvider) Complete(_ context.Context, _, userPrompt string, maxTokens int) (string, error) {
	f.calls++
	f.lastPrompt = userPrompt
	f.lastMaxToks = maxTokens
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(_ context.Context, name, _, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF " + name), nil
}

// recordingAuditor captures emitted events for assertions.
type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAuditor) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemoryStore
	provider *fakeProvider
	auditor  *recordingAuditor
	service  *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemoryStore()
	s.provider = &fakeProvider{result: strings.Repeat("今日の運勢は", 100)}
	s.auditor = &recordingAuditor{}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := New(s.store, s.provider, logger,
		WithAuditor(s.auditor),
		WithRenderer(&fakeRenderer{}),
	)
	s.Require().NoError(err)
	s.service = svc
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestCreateFree() {
	s.Run("free diagnosis is unlocked and fully visible", func() {
		p, err := s.service.CreateFree(s.ctx, "山田太郎", "1990-05-15")
		s.Require().NoError(err)
		s.NotEmpty(p.Token)
		s.False(p.Locked)
		s.False(p.Detailed)
		s.Equal(s.provider.result, p.Result)
		s.Equal(freeMaxTokens, s.provider.lastMaxToks)
	})

	s.Run("prompt carries name and birth date", func() {
		_, err := s.service.CreateFree(s.ctx, "佐藤花子", "1985-12-01")
		s.Require().NoError(err)
		s.Contains(s.provider.lastPrompt, "佐藤花子")
		s.Contains(s.provider.lastPrompt, "1985-12-01")
	})
}

func (s *ServiceSuite) TestCreateDetailed() {
	s.Run("detailed diagnosis starts locked and redacted", func() {
		p, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)
		s.True(p.Locked)
		s.True(p.Detailed)
		s.True(strings.HasSuffix(p.Result, diagnosis.RedactionNotice))
		s.NotEqual(s.provider.result, p.Result)
		s.Equal(detailedMaxTokens, s.provider.lastMaxToks)
	})

	s.Run("stored record keeps the full result", func() {
		p, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)

		record, err := s.store.Get(s.ctx, p.Token)
		s.Require().NoError(err)
		s.Equal(s.provider.result, record.Result)
		s.False(record.Unlocked)
	})

	s.Run("categories and free text flow into the prompt", func() {
		_, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love", "money"}, "転職の時期")
		s.Require().NoError(err)
		s.Contains(s.provider.lastPrompt, "love")
		s.Contains(s.provider.lastPrompt, "money")
		s.Contains(s.provider.lastPrompt, "転職の時期")
	})
}

func (s *ServiceSuite) TestProviderFailure() {
	s.Run("nothing is persisted when generation fails", func() {
		s.provider.err = fmt.Errorf("upstream 500")
		_, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeProvider))
		s.Empty(s.auditor.actions())
	})
}

func (s *ServiceSuite) TestView() {
	s.Run("locked diagnosis views as redacted, not as an error", func() {
		created, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)

		p, err := s.service.View(s.ctx, created.Token)
		s.Require().NoError(err)
		s.True(p.Locked)
		s.True(strings.HasSuffix(p.Result, diagnosis.RedactionNotice))
	})

	s.Run("unknown token is a not-found code", func() {
		_, err := s.service.View(s.ctx, "no-such-token")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUnlock() {
	s.Run("unlock reveals the full result", func() {
		created, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)

		s.Require().NoError(s.service.Unlock(s.ctx, created.Token))

		p, err := s.service.View(s.ctx, created.Token)
		s.Require().NoError(err)
		s.False(p.Locked)
		s.Equal(s.provider.result, p.Result)
	})

	s.Run("unlock is idempotent and audits only the first transition", func() {
		created, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)

		s.Require().NoError(s.service.Unlock(s.ctx, created.Token))
		s.Require().NoError(s.service.Unlock(s.ctx, created.Token))
		s.Require().NoError(s.service.Unlock(s.ctx, created.Token))

		unlocks := 0
		for _, action := range s.auditor.actions() {
			if action == audit.ActionDiagnosisUnlocked {
				unlocks++
			}
		}
		s.Equal(1, unlocks)
	})

	s.Run("unlocking an unknown token is a not-found code", func() {
		err := s.service.Unlock(s.ctx, "no-such-token")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDocument() {
	s.Run("locked diagnosis refuses the document", func() {
		created, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)

		_, err = s.service.Document(s.ctx, created.Token)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeLocked))
	})

	s.Run("unlocked diagnosis renders", func() {
		created, err := s.service.CreateDetailed(s.ctx, "山田太郎", "1990-05-15", []string{"love"}, "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.Unlock(s.ctx, created.Token))

		data, err := s.service.Document(s.ctx, created.Token)
		s.Require().NoError(err)
		s.NotEmpty(data)
	})

	s.Run("free diagnosis renders without payment", func() {
		created, err := s.service.CreateFree(s.ctx, "山田太郎", "1990-05-15")
		s.Require().NoError(err)

		data, err := s.service.Document(s.ctx, created.Token)
		s.Require().NoError(err)
		s.NotEmpty(data)
	})

	s.Run("render failure maps to a render code", func() {
		logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		svc, err := New(s.store, s.provider, logger,
			WithRenderer(&fakeRenderer{err: fmt.Errorf("font missing")}),
		)
		s.Require().NoError(err)

		created, err := svc.CreateFree(s.ctx, "山田太郎", "1990-05-15")
		s.Require().NoError(err)

		_, err = svc.Document(s.ctx, created.Token)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeRender))
	})
}
