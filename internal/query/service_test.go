package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"credreg/internal/credential/models"
	credential "credreg/internal/credential/service"
	credentialstore "credreg/internal/credential/store"
	identity "credreg/internal/identity/service"
	identitystore "credreg/internal/identity/store"
	"credreg/internal/policy"
	"credreg/internal/query/metrics"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	"credreg/pkg/platform/audit/publisher"
	auditmemory "credreg/pkg/platform/audit/store/memory"
	"credreg/pkg/platform/tx"
	"credreg/pkg/testutil"
)

const (
	admin   = id.Principal("0x00000000000000000000000000000000000000A1")
	alice   = id.Principal("0x00000000000000000000000000000000000000B1")
	bob     = id.Principal("0x00000000000000000000000000000000000000B2")
	uni     = id.Principal("0x00000000000000000000000000000000000000C1")
	certOrg = id.Principal("0x00000000000000000000000000000000000000D1")
)

var degree = json.RawMessage(`{"degree":"BSc","start_date":"2020-01-01","end_date":"2024-01-01"}`)

type QuerySuite struct {
	suite.Suite
	ctx         context.Context
	credentials *credential.Service
	registry    *identity.Service
	gate        *policy.Gate
	service     *Service
}

func TestQuerySuite(t *testing.T) {
	suite.Run(t, new(QuerySuite))
}

func (s *QuerySuite) SetupTest() {
	s.ctx = testutil.Context(time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(trail)

	users := identitystore.NewInMemoryUserStore()
	resolver := identity.NewActorResolver(users)
	s.gate = policy.NewGate(resolver, nil)
	runner := tx.NewMemoryRunner(0)
	s.registry = identity.New(users, s.gate, runner, identity.WithLogger(logger), identity.WithAuditPublisher(pub))
	s.Require().NoError(s.registry.Bootstrap(s.ctx, admin, "Root"))
	for p, role := range map[id.Principal]id.Role{
		alice: id.RoleSubject, bob: id.RoleSubject, uni: id.RoleInstitution, certOrg: id.RoleCertifier,
	} {
		_, err := s.registry.RegisterUser(s.ctx, admin, p, role, "User", "", "")
		s.Require().NoError(err)
	}

	s.credentials = credential.New(credentialstore.NewInMemoryIssuerStore(), credentialstore.NewInMemoryRecordStore(), resolver, s.gate, runner,
		credential.WithLogger(logger), credential.WithAuditPublisher(pub))
	s.gate.SetIssuerDirectory(s.credentials)

	_, err := s.credentials.RegisterIssuer(s.ctx, id.DomainEducation, uni, "State University", nil, "EDU-1")
	s.Require().NoError(err)
	for range 2 {
		_, err := s.credentials.CreateRecord(s.ctx, id.DomainEducation, uni, alice, degree, "")
		s.Require().NoError(err)
	}
	_, err = s.credentials.RequestVerification(s.ctx, id.DomainEducation, alice, 2)
	s.Require().NoError(err)

	s.service = New(s.registry, s.credentials, s.gate,
		WithLogger(logger),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithAuditReader(trail),
	)
}

func (s *QuerySuite) TestListAllSubjectPrincipals() {
	out, err := s.service.ListAllSubjectPrincipals(s.ctx, uni)
	s.Require().NoError(err)
	s.ElementsMatch([]id.Principal{alice, bob}, out)

	_, err = s.service.ListAllSubjectPrincipals(s.ctx, id.Principal("0x00000000000000000000000000000000000000FF"))
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *QuerySuite) TestListAllRecordsAcrossSubjects() {
	out, err := s.service.ListAllRecordsAcrossSubjects(s.ctx, admin, id.DomainEducation)
	s.Require().NoError(err)
	s.Len(out, 2)

	_, err = s.service.ListAllRecordsAcrossSubjects(s.ctx, uni, id.DomainEducation)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *QuerySuite) TestDashboard() {
	s.Run("subject", func() {
		dash, err := s.service.Dashboard(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(id.RoleSubject, dash.Role)
		s.Len(dash.Domains, len(id.AllDomains()))
		edu := dash.Domains[id.DomainEducation]
		s.Require().NotNil(edu)
		s.Equal(2, edu.Records)
		s.Equal(1, edu.Pending)
		s.Equal(1, edu.ByState[models.StateUnverified])
		s.Equal(1, edu.ByState[models.StatePending])
		s.Zero(dash.Domains[id.DomainEmployment].Records)
		s.Nil(dash.Users)
	})

	s.Run("registered issuer", func() {
		dash, err := s.service.Dashboard(s.ctx, uni)
		s.Require().NoError(err)
		s.Len(dash.Domains, 1)
		edu := dash.Domains[id.DomainEducation]
		s.Require().NotNil(edu)
		s.True(edu.Registered)
		s.Equal(1, edu.Pending)
	})

	s.Run("unregistered issuer", func() {
		dash, err := s.service.Dashboard(s.ctx, certOrg)
		s.Require().NoError(err)
		cert := dash.Domains[id.DomainCertification]
		s.Require().NotNil(cert)
		s.False(cert.Registered)
		s.Zero(cert.Pending)
	})

	s.Run("admin", func() {
		dash, err := s.service.Dashboard(s.ctx, admin)
		s.Require().NoError(err)
		s.Equal(2, dash.Domains[id.DomainEducation].Records)
		s.Equal(0, dash.Domains[id.DomainAchievement].Records)
		s.Equal(1, dash.Users[id.RoleAdmin])
		s.Equal(2, dash.Users[id.RoleSubject])
		s.Equal(1, dash.Users[id.RoleInstitution])
	})
}

func (s *QuerySuite) TestListPendingAcrossDomains() {
	out, err := s.service.ListPendingAcrossDomains(s.ctx, uni)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(uint64(2), out[0].ID)
	s.Equal(id.DomainEducation, out[0].Domain)

	out, err = s.service.ListPendingAcrossDomains(s.ctx, alice)
	s.Require().NoError(err)
	s.Empty(out)

	out, err = s.service.ListPendingAcrossDomains(s.ctx, certOrg)
	s.Require().NoError(err)
	s.Empty(out)
}

func (s *QuerySuite) TestReadAudit() {
	events, err := s.service.ReadAudit(s.ctx, admin, alice, 0)
	s.Require().NoError(err)
	// registration, two records, one request
	s.Len(events, 4)
	for _, e := range events {
		s.True(e.Involves(alice))
	}

	events, err = s.service.ReadAudit(s.ctx, admin, "", 2)
	s.Require().NoError(err)
	s.Len(events, 2)

	_, err = s.service.ReadAudit(s.ctx, alice, alice, 0)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

type failingCredentials struct {
	Credentials
}

func (failingCredentials) CountRecords(context.Context, id.Domain) (int, error) {
	return 0, errors.New("disk on fire")
}

func (s *QuerySuite) TestDashboardFailureIsInternal() {
	svc := New(s.registry, failingCredentials{s.credentials}, s.gate)
	_, err := svc.Dashboard(s.ctx, admin)
	s.True(dErrors.Is(err, dErrors.CodeInternal))
}
