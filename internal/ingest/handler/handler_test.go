package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/handler/mocks"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/service"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type IngestHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestIngestHandlerSuite(t *testing.T) {
	suite.Run(t, new(IngestHandlerSuite))
}

func (s *IngestHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger, nil).Register(s.router)
}

func (s *IngestHandlerSuite) post(body any) *httptest.ResponseRecorder {
	return testutil.Serve(s.router, testutil.JSONRequest(s.T(), http.MethodPost, "/attribution/track", body))
}

func (s *IngestHandlerSuite) TestTrack() {
	user, actor := uuid.New(), uuid.New()
	body := models.RawEvent{
		Type:      "install",
		UserID:    user.String(),
		ActorID:   actor.String(),
		DeviceID:  "d1",
		IP:        "1.2.3.4",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	s.Run("accepted", func() {
		attributionID := id.NewAttributionID()
		s.service.EXPECT().Track(gomock.Any(), gomock.AssignableToTypeOf(models.Touch{})).
			Return(service.TrackResult{AttributionID: attributionID, ActorID: id.ActorID(actor), Created: true}, nil)

		w := s.post(body)
		s.Require().Equal(http.StatusAccepted, w.Code)
		resp := testutil.DecodeJSON[TrackResponse](s.T(), w)
		s.Equal(attributionID.String(), resp.AttributionID)
		s.True(resp.Created)
	})

	s.Run("validation error is 400", func() {
		w := s.post(`{"type":"install","userId":"x","timestamp":"2026-01-01T00:00:00Z"}`)
		testutil.AssertError(s.T(), w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("unknown fields are rejected", func() {
		w := s.post(`{"type":"install","sneaky":true}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("service errors are mapped", func() {
		s.service.EXPECT().Track(gomock.Any(), gomock.Any()).
			Return(service.TrackResult{}, dErrors.New(dErrors.CodeUnavailable, "identity service unavailable"))
		w := s.post(body)
		testutil.AssertError(s.T(), w, http.StatusServiceUnavailable, dErrors.CodeUnavailable)
	})
}
