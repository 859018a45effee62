package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"testrelay-portal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// BusinessServiceTestSuite defines the test suite for BusinessService
type BusinessServiceTestSuite struct {
	suite.Suite
	store      *SessionStore
	selections *MockSelectionRepository
	businesses *MockBusinessRepository
	service    *BusinessService
	ctx        context.Context
}

func (suite *BusinessServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = NewSessionStore()
	suite.selections = &MockSelectionRepository{}
	suite.businesses = &MockBusinessRepository{}
	suite.service = NewBusinessService(suite.store, suite.selections, suite.businesses, newMockLogger())
}

func (suite *BusinessServiceTestSuite) TearDownTest() {
	suite.service.Close()
}

func TestBusinessServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BusinessServiceTestSuite))
}

func (suite *BusinessServiceTestSuite) resolve(uid string) {
	suite.store.apply(models.Session{
		State:     models.SessionResolved,
		Principal: &models.Principal{UID: uid},
		Token:     "token",
		Claims:    models.Claims(recruiterClaims()),
	})
}

func (suite *BusinessServiceTestSuite) resolving(uid string) {
	suite.store.apply(models.Session{
		State:     models.SessionResolvingClaims,
		Principal: &models.Principal{UID: uid},
		Loading:   true,
	})
}

func (suite *BusinessServiceTestSuite) settled() {
	suite.Eventually(func() bool {
		return !suite.service.Selection().Loading
	}, time.Second, 5*time.Millisecond)
	suite.service.wg.Wait()
}

func (suite *BusinessServiceTestSuite) TestHydratesPersistedSelection() {
	stored := models.Business{ID: 9, Name: "Acme", CreatorID: 1}
	suite.selections.On("GetSelection", mock.Anything, "uid-1").
		Return(&models.SelectionRecord{PrincipalID: "uid-1", Business: stored}, nil).Once()

	suite.resolving("uid-1")
	suite.settled()

	suite.Equal(&stored, suite.service.Selected())
	suite.businesses.AssertNotCalled(suite.T(), "ListBusinesses", mock.Anything)
}

func (suite *BusinessServiceTestSuite) TestPicksBusinessCreatedByUser() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.businesses.On("ListBusinesses", mock.Anything).Return([]models.Business{
		{ID: 1, Name: "Other", CreatorID: 5},
		{ID: 2, Name: "Mine", CreatorID: 42},
	}, nil).Once()
	suite.selections.On("PutSelection", mock.Anything, mock.MatchedBy(func(r *models.SelectionRecord) bool {
		return r.PrincipalID == "uid-1" && r.Business.ID == 2
	})).Return(nil).Once()

	suite.resolve("uid-1")
	suite.settled()

	suite.Require().NotNil(suite.service.Selected())
	suite.Equal(int64(2), suite.service.Selected().ID)
	suite.selections.AssertExpectations(suite.T())
}

func (suite *BusinessServiceTestSuite) TestPicksFirstBusinessOtherwise() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.businesses.On("ListBusinesses", mock.Anything).Return([]models.Business{
		{ID: 3, Name: "First", CreatorID: 5},
		{ID: 4, Name: "Second", CreatorID: 6},
	}, nil).Once()
	suite.selections.On("PutSelection", mock.Anything, mock.Anything).Return(nil).Once()

	suite.resolve("uid-1")
	suite.settled()

	suite.Require().NotNil(suite.service.Selected())
	suite.Equal(int64(3), suite.service.Selected().ID)
}

func (suite *BusinessServiceTestSuite) TestNoBusinessesSelectsNothing() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.businesses.On("ListBusinesses", mock.Anything).Return([]models.Business{}, nil).Once()

	suite.resolve("uid-1")
	suite.settled()

	suite.Nil(suite.service.Selected())
	suite.selections.AssertNotCalled(suite.T(), "PutSelection", mock.Anything, mock.Anything)
}

func (suite *BusinessServiceTestSuite) TestFetchErrorClearsSelection() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, errors.New("disk")).Once()
	suite.businesses.On("ListBusinesses", mock.Anything).Return(nil, errors.New("graphql down")).Once()

	suite.resolve("uid-1")
	suite.settled()

	selection := suite.service.Selection()
	suite.Nil(selection.Selected)
	suite.False(selection.Loading)
}

func (suite *BusinessServiceTestSuite) TestSignOutDeletesPersistedSelection() {
	stored := models.Business{ID: 9, Name: "Acme"}
	suite.selections.On("GetSelection", mock.Anything, "uid-1").
		Return(&models.SelectionRecord{PrincipalID: "uid-1", Business: stored}, nil).Once()
	suite.resolving("uid-1")
	suite.settled()
	suite.Require().NotNil(suite.service.Selected())

	suite.selections.On("DeleteSelection", mock.Anything, "uid-1").Return(nil).Once()
	suite.store.apply(models.Session{State: models.SessionNoSession})

	suite.Nil(suite.service.Selected())
	suite.service.wg.Wait()
	suite.selections.AssertCalled(suite.T(), "DeleteSelection", mock.Anything, "uid-1")

	// signing in again starts from an empty selection
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.resolving("uid-1")
	suite.settled()

	suite.Nil(suite.service.Selected())
	suite.selections.AssertExpectations(suite.T())
}

func (suite *BusinessServiceTestSuite) TestSignOutDeletesBeforeNextHydrate() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.resolving("uid-1")
	suite.settled()

	var order []string
	suite.selections.On("DeleteSelection", mock.Anything, "uid-1").
		Run(func(mock.Arguments) {
			time.Sleep(20 * time.Millisecond)
			order = append(order, "delete")
		}).Return(nil).Once()
	suite.selections.On("GetSelection", mock.Anything, "uid-1").
		Run(func(mock.Arguments) { order = append(order, "get") }).
		Return(nil, nil).Once()

	suite.store.apply(models.Session{State: models.SessionNoSession})
	suite.resolving("uid-1")
	suite.settled()

	suite.Equal([]string{"delete", "get"}, order)
}

func (suite *BusinessServiceTestSuite) TestSignOutDeleteFailureIsLogged() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.resolving("uid-1")
	suite.settled()
	suite.selections.On("DeleteSelection", mock.Anything, "uid-1").Return(errors.New("disk")).Once()

	suite.store.apply(models.Session{State: models.SessionNoSession})
	suite.service.wg.Wait()

	suite.Nil(suite.service.Selected())
	suite.selections.AssertExpectations(suite.T())
}

func (suite *BusinessServiceTestSuite) TestChooseAndClear() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.resolving("uid-1")
	suite.settled()

	chosen := models.Business{ID: 5, Name: "Picked"}
	suite.selections.On("PutSelection", mock.Anything, mock.MatchedBy(func(r *models.SelectionRecord) bool {
		return r.PrincipalID == "uid-1" && r.Business == chosen
	})).Return(nil).Once()
	suite.Require().NoError(suite.service.Choose(suite.ctx, chosen))
	suite.Equal(&chosen, suite.service.Selected())

	suite.selections.On("DeleteSelection", mock.Anything, "uid-1").Return(nil).Once()
	suite.Require().NoError(suite.service.Clear(suite.ctx))
	suite.Nil(suite.service.Selected())
	suite.selections.AssertExpectations(suite.T())
}

func (suite *BusinessServiceTestSuite) TestChooseFailureKeepsSelection() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").Return(nil, nil).Once()
	suite.resolving("uid-1")
	suite.settled()
	suite.selections.On("PutSelection", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	err := suite.service.Choose(suite.ctx, models.Business{ID: 5, Name: "Picked"})

	suite.Error(err)
	suite.Nil(suite.service.Selected())
}

func (suite *BusinessServiceTestSuite) TestChooseWithoutSession() {
	suite.ErrorIs(suite.service.Choose(suite.ctx, models.Business{ID: 1, Name: "x"}), models.ErrNoSession)
	suite.ErrorIs(suite.service.Clear(suite.ctx), models.ErrNoSession)
}

func (suite *BusinessServiceTestSuite) TestSelectedReturnsCopy() {
	suite.selections.On("GetSelection", mock.Anything, "uid-1").
		Return(&models.SelectionRecord{PrincipalID: "uid-1", Business: models.Business{ID: 9, Name: "Acme"}}, nil).Once()
	suite.resolving("uid-1")
	suite.settled()

	got := suite.service.Selected()
	got.Name = "changed"
	suite.Equal("Acme", suite.service.Selected().Name)
}

func TestPickDefaultBusiness(t *testing.T) {
	cases := []struct {
		name       string
		businesses []models.Business
		userPK     int64
		want       int64
	}{
		{"empty", nil, 42, 0},
		{"creator match", []models.Business{{ID: 1, CreatorID: 2}, {ID: 3, CreatorID: 42}}, 42, 3},
		{"first", []models.Business{{ID: 1, CreatorID: 2}, {ID: 3, CreatorID: 4}}, 42, 1},
		{"unknown user", []models.Business{{ID: 1, CreatorID: 0}, {ID: 3, CreatorID: 4}}, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := pickDefaultBusiness(tc.businesses, tc.userPK)
			if tc.want == 0 {
				if got != nil {
					t.Fatalf("expected no business, got %d", got.ID)
				}
				return
			}
			if got == nil || got.ID != tc.want {
				t.Fatalf("expected business %d, got %v", tc.want, got)
			}
		})
	}
}
