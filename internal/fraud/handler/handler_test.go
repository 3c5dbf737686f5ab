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

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/handler/mocks"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/service"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type FraudHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestFraudHandlerSuite(t *testing.T) {
	suite.Run(t, new(FraudHandlerSuite))
}

func (s *FraudHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *FraudHandlerSuite) review(body any) *httptest.ResponseRecorder {
	req := testutil.JSONRequest(s.T(), http.MethodPost, "/fraud/review", body)
	return testutil.Serve(s.router, testutil.WithAdmin(req, "ops@example.com"))
}

func (s *FraudHandlerSuite) signals(actorID string) *httptest.ResponseRecorder {
	return testutil.Serve(s.router, testutil.JSONRequest(s.T(), http.MethodGet, "/fraud/actors/"+actorID+"/signals", nil))
}

func (s *FraudHandlerSuite) TestReview() {
	signalID := id.NewSignalID()
	actorID := id.NewActorID()

	s.Run("reviewer defaults to admin subject", func() {
		s.service.EXPECT().Review(gomock.Any(), service.ReviewRequest{
			SignalID: signalID,
			Decision: models.DecisionOverturned,
			Reviewer: "ops@example.com",
			Note:     "false positive",
		}).Return(&service.ReviewResult{
			Signal: models.Signal{ID: signalID, ActorID: actorID, Type: models.TypeClickFarm},
			Risk:   &risk.State{ActorID: actorID, Status: risk.StatusWatchList, Version: 3},
		}, nil)

		w := s.review(map[string]string{
			"signal_id": signalID.String(),
			"decision":  "Overturned",
			"note":      "false positive",
		})
		s.Require().Equal(http.StatusOK, w.Code)

		resp := testutil.DecodeJSON[struct {
			Signal struct {
				ID string `json:"id"`
			} `json:"signal"`
			Risk struct {
				Status  string `json:"account_status"`
				Version int64  `json:"version"`
			} `json:"risk"`
		}](s.T(), w)
		s.Equal(signalID.String(), resp.Signal.ID)
		s.Equal("watch_list", resp.Risk.Status)
		s.Equal(int64(3), resp.Risk.Version)
	})

	s.Run("bad decision is 400", func() {
		w := s.review(`{"signal_id":"` + signalID.String() + `","decision":"maybe"}`)
		testutil.AssertError(s.T(), w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("bad signal id is 400", func() {
		w := s.review(`{"signal_id":"nope","decision":"confirmed"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unknown signal is 404", func() {
		s.service.EXPECT().Review(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "signal not found"))
		w := s.review(`{"signal_id":"` + signalID.String() + `","decision":"confirmed","reviewer":"lead"}`)
		testutil.AssertError(s.T(), w, http.StatusNotFound, dErrors.CodeNotFound)
	})
}

func (s *FraudHandlerSuite) TestSignals() {
	actorID := id.NewActorID()

	s.Run("lists signals", func() {
		s.service.EXPECT().SignalsByActor(gomock.Any(), actorID).Return([]models.Signal{
			{ID: id.NewSignalID(), ActorID: actorID, Type: models.TypeSelfReferral, Severity: models.SeverityCritical, Confidence: 100},
		}, nil)

		w := s.signals(actorID.String())
		s.Require().Equal(http.StatusOK, w.Code)
		resp := testutil.DecodeJSON[SignalsResponse](s.T(), w)
		s.Equal(actorID.String(), resp.ActorID)
		s.Require().Len(resp.Signals, 1)
		s.Equal(models.TypeSelfReferral, resp.Signals[0].Type)
	})

	s.Run("empty list is an empty array", func() {
		s.service.EXPECT().SignalsByActor(gomock.Any(), actorID).Return(nil, nil)

		w := s.signals(actorID.String())
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"signals":[]`)
	})

	s.Run("bad actor id is 400", func() {
		s.Equal(http.StatusBadRequest, s.signals("garbage").Code)
	})
}
