package app

import (
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/showtime-booking/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DEBUG, ParseLevel("debug"))
	assert.Equal(t, log.WARN, ParseLevel("WARNING"))
	assert.Equal(t, log.ERROR, ParseLevel("ERROR"))
	assert.Equal(t, log.INFO, ParseLevel(""))
	assert.Equal(t, log.INFO, ParseLevel("verbose"))
}

func TestEngineConfig(t *testing.T) {
	cfg := config.Config{
		Booking: config.BookingConfig{HoldTTL: 2 * time.Minute, LeaseSkew: 10 * time.Second, PaymentTTL: time.Hour, RefundPolicy: 12 * time.Hour},
		Cache:   config.CacheConfig{TTL: 5 * time.Minute},
	}
	ec := EngineConfig(cfg)
	assert.Equal(t, 2*time.Minute, ec.HoldTTL)
	assert.Equal(t, 10*time.Second, ec.LeaseSkew)
	assert.Equal(t, time.Hour, ec.PaymentTTL)
	assert.Equal(t, 12*time.Hour, ec.RefundPolicy)
	assert.Equal(t, 5*time.Minute, ec.ListCacheTTL)
}
