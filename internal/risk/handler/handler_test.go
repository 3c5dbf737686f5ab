package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/handler/mocks"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type RiskHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestRiskHandlerSuite(t *testing.T) {
	suite.Run(t, new(RiskHandlerSuite))
}

func (s *RiskHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *RiskHandlerSuite) do(method, path string) *httptest.ResponseRecorder {
	return testutil.Serve(s.router, testutil.JSONRequest(s.T(), method, path, nil))
}

func (s *RiskHandlerSuite) TestGet() {
	actorID := id.NewActorID()

	s.Run("returns state", func() {
		s.service.EXPECT().State(gomock.Any(), actorID).Return(&models.State{
			ActorID:     actorID,
			RiskScore:   64.5,
			Status:      models.StatusSuspended,
			SignalCount: 2,
			Version:     5,
		}, nil)

		w := s.do(http.MethodGet, "/risk/actors/"+actorID.String())
		s.Require().Equal(http.StatusOK, w.Code)
		got := testutil.DecodeJSON[models.State](s.T(), w)
		s.Equal(actorID, got.ActorID)
		s.Equal(models.StatusSuspended, got.Status)
		s.Equal(64.5, got.RiskScore)
		s.Equal(int64(5), got.Version)
	})

	s.Run("bad id", func() {
		s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/risk/actors/abc").Code)
	})
}

func (s *RiskHandlerSuite) TestRecompute() {
	actorID := id.NewActorID()

	s.Run("busy actor is 503", func() {
		s.service.EXPECT().Recompute(gomock.Any(), actorID).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "actor risk is busy"))
		w := s.do(http.MethodPost, "/risk/actors/"+actorID.String()+"/recompute")
		testutil.AssertError(s.T(), w, http.StatusServiceUnavailable, dErrors.CodeUnavailable)
	})

	s.Run("returns recomputed state", func() {
		s.service.EXPECT().Recompute(gomock.Any(), actorID).
			Return(&models.State{ActorID: actorID, Status: models.StatusClean, Version: 1}, nil)
		w := s.do(http.MethodPost, "/risk/actors/"+actorID.String()+"/recompute")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"account_status":"clean"`)
	})
}
