package credit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskhive/deskhive-api/internal/domain/credit"
)

func TestEffectiveStatusLazyExpiry(t *testing.T) {
	now := time.Now()
	c := &credit.Credit{
		Status:    credit.StatusActive,
		ExpiresAt: now.Add(-time.Minute),
	}

	require.Equal(t, credit.StatusExpired, c.EffectiveStatus(now),
		"an active credit past expiry reads as expired before any sweep runs")

	c.ExpiresAt = now.Add(time.Minute)
	require.Equal(t, credit.StatusActive, c.EffectiveStatus(now))

	c.Status = credit.StatusUsed
	c.ExpiresAt = now.Add(-time.Hour)
	require.Equal(t, credit.StatusUsed, c.EffectiveStatus(now),
		"used stays used, expiry never rewrites it")
}
