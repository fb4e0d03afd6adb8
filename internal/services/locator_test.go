package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

type stubLocationReader struct {
	loc *models.LiveLocation
	err error
}

func (s stubLocationReader) GetLocation(context.Context, string) (*models.LiveLocation, error) {
	return s.loc, s.err
}

func TestLastKnownLocator(t *testing.T) {
	now := fixedTime
	fresh := &models.LiveLocation{UserID: "u1", Coordinate: sodepur, Accuracy: 12, UpdatedAt: now.Add(-time.Minute)}

	l := LastKnownLocator{Store: stubLocationReader{loc: fresh}, MaxAge: 10 * time.Minute, MaxAccuracy: 50, Now: func() time.Time { return now }}
	c, err := l.Locate(context.Background(), "u1", LocateOptions{HighAccuracy: true})
	require.NoError(t, err)
	assert.Equal(t, sodepur, c)

	stale := *fresh
	stale.UpdatedAt = now.Add(-time.Hour)
	l.Store = stubLocationReader{loc: &stale}
	_, err = l.Locate(context.Background(), "u1", LocateOptions{})
	assert.ErrorIs(t, err, ErrLocationUnavailable)

	coarse := *fresh
	coarse.Accuracy = 900
	l.Store = stubLocationReader{loc: &coarse}
	_, err = l.Locate(context.Background(), "u1", LocateOptions{HighAccuracy: true})
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	_, err = l.Locate(context.Background(), "u1", LocateOptions{})
	assert.NoError(t, err)

	l.Store = stubLocationReader{}
	_, err = l.Locate(context.Background(), "u1", LocateOptions{})
	assert.ErrorIs(t, err, ErrLocationUnavailable)

	boom := errors.New("redis down")
	l.Store = stubLocationReader{err: boom}
	_, err = l.Locate(context.Background(), "u1", LocateOptions{})
	assert.ErrorIs(t, err, boom)
}
