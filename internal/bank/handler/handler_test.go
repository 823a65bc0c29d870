package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"foodvote/internal/bank"
	"foodvote/internal/bank/handler/mocks"
	"foodvote/internal/bank/loader"
	dErrors "foodvote/pkg/domain-errors"
	"foodvote/pkg/testutil"
)

// =============================================================================
// Registry Handler Test Suite
// =============================================================================

type HandlerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	votes  *mocks.MockVoteCounter
	holder *loader.Holder
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	reg := bank.New()
	reg.Merge([]bank.MenuItem{{Location: "Ford", Item: "Soup"}}, false)
	reg.MergeToday("2025-11-14", []bank.MenuItem{
		{Location: "Wiley", Item: "Pizza"},
		{Location: "Wiley", Item: "Salad"},
	})
	snap, err := loader.FromRegistry(reg)
	s.Require().NoError(err)
	s.holder = loader.NewHolder(snap)

	s.ctrl = gomock.NewController(s.T())
	s.votes = mocks.NewMockVoteCounter(s.ctrl)

	r := chi.NewRouter()
	New(s.holder, s.votes, nil).Register(r)
	s.router = r
}

func (s *HandlerSuite) get(path string, headers ...string) *httptest.ResponseRecorder {
	return testutil.Get(s.router, path, headers...)
}

// =============================================================================
// GET /registry
// =============================================================================

func (s *HandlerSuite) TestSnapshotServesRawBytes() {
	w := s.get("/registry")

	s.Equal(http.StatusOK, w.Code)
	s.Equal("application/cbor", w.Header().Get("Content-Type"))
	s.Equal("no-cache", w.Header().Get("Cache-Control"))
	s.Equal(`"`+s.holder.Current().Checksum+`"`, w.Header().Get("ETag"))

	reg, err := bank.Decode(w.Body.Bytes())
	s.Require().NoError(err)
	s.Contains(reg.Foods, "pizza")
}

func (s *HandlerSuite) TestSnapshotCompressedContentType() {
	data, err := bank.EncodeCompressed(s.holder.Current().Registry)
	s.Require().NoError(err)
	snap, err := loader.FromBytes(data)
	s.Require().NoError(err)
	s.holder.Swap(snap)

	w := s.get("/registry")

	s.Equal(http.StatusOK, w.Code)
	s.Equal("application/zstd", w.Header().Get("Content-Type"))
	s.Equal(data, w.Body.Bytes())
	reg, err := bank.Decode(w.Body.Bytes())
	s.Require().NoError(err)
	s.Contains(reg.Foods, "salad")
}

func (s *HandlerSuite) TestSnapshotRevalidation() {
	etag := `"` + s.holder.Current().Checksum + `"`

	s.Run("matching etag", func() {
		w := s.get("/registry", "If-None-Match", etag)
		s.Equal(http.StatusNotModified, w.Code)
		s.Empty(w.Body.Bytes())
	})

	s.Run("stale etag", func() {
		w := s.get("/registry", "If-None-Match", `"deadbeef", W/"cafe"`)
		s.Equal(http.StatusOK, w.Code)
	})
}

func (s *HandlerSuite) TestStats() {
	w := s.get("/registry/stats")

	s.Equal(http.StatusOK, w.Code)
	resp := testutil.UnmarshalResponse[StatsResponse](s.T(), w)
	s.Equal(3, resp.Foods)
	s.Equal(2, resp.Locations)
	s.Equal("2025-11-14", resp.MenuDate)
	s.Equal(s.holder.Current().Checksum, resp.Checksum)
}

// =============================================================================
// GET /foods/{id}
// =============================================================================

func (s *HandlerSuite) TestFood() {
	pizza := s.holder.Current().Registry.Foods["pizza"]
	s.votes.EXPECT().
		Counts(gomock.Any(), []uint32{pizza.ID}).
		Return(map[uint32]int64{pizza.ID: 12}, nil).
		Times(1)

	w := s.get("/foods/1")

	s.Equal(http.StatusOK, w.Code)
	resp := testutil.UnmarshalResponse[FoodResponse](s.T(), w)
	s.Equal(FoodResponse{ID: 1, Name: "pizza", Location: "wiley", Votes: 12}, *resp)
}

func (s *HandlerSuite) TestFoodErrors() {
	s.Run("unknown id", func() {
		testutil.AssertStatusAndError(s.T(), s.get("/foods/99"), http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("non numeric id", func() {
		testutil.AssertStatusAndError(s.T(), s.get("/foods/pizza"), http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("counter failure", func() {
		s.votes.EXPECT().
			Counts(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "failed to read votes"))
		s.Equal(http.StatusInternalServerError, s.get("/foods/0").Code)
	})
}

// =============================================================================
// GET /locations/{id}/menu
// =============================================================================

func (s *HandlerSuite) TestMenu() {
	reg := s.holder.Current().Registry
	wiley := reg.Locations["wiley"].ID
	ford := reg.Locations["ford"].ID

	s.Run("location serving today", func() {
		w := s.get("/locations/" + itoa(wiley) + "/menu")
		s.Equal(http.StatusOK, w.Code)
		resp := testutil.UnmarshalResponse[MenuResponse](s.T(), w)
		s.Equal("2025-11-14", resp.Date)
		s.Equal([]uint32{reg.Foods["pizza"].ID, reg.Foods["salad"].ID}, resp.FoodIDs)
	})

	s.Run("location closed today", func() {
		w := s.get("/locations/" + itoa(ford) + "/menu")
		s.Equal(http.StatusOK, w.Code)
		resp := testutil.UnmarshalResponse[MenuResponse](s.T(), w)
		s.Empty(resp.FoodIDs)
	})

	s.Run("unknown location", func() {
		s.Equal(http.StatusNotFound, s.get("/locations/7/menu").Code)
	})
}

func (s *HandlerSuite) TestRegistryNotLoaded() {
	snaps := mocks.NewMockSnapshots(s.ctrl)
	snaps.EXPECT().Current().Return(nil).AnyTimes()
	r := chi.NewRouter()
	New(snaps, s.votes, nil).Register(r)

	for _, path := range []string{"/registry", "/registry/stats", "/foods/0", "/locations/0/menu"} {
		w := testutil.Get(r, path)
		s.Equal(http.StatusServiceUnavailable, w.Code, path)
	}
}

func itoa(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
