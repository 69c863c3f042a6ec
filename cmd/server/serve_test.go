package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"veritas.app/backend/internal/config"
	"veritas.app/backend/internal/core"
)

func TestWriteTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want time.Duration
	}{
		{
			name: "defaults",
			cfg:  config.Config{LLMTimeout: 30 * time.Second, SearchTimeout: 30 * time.Second, SearchMaxAttempts: 3},
			// model + 2 providers x 3 attempts x 30s + persistence + slack
			want: 30*time.Second + 180*time.Second + core.PersistTimeout + responseSlack,
		},
		{
			name: "single attempt",
			cfg:  config.Config{LLMTimeout: 10 * time.Second, SearchTimeout: 5 * time.Second, SearchMaxAttempts: 1},
			want: 10*time.Second + 10*time.Second + core.PersistTimeout + responseSlack,
		},
		{
			name: "unset values use service defaults",
			cfg:  config.Config{},
			want: core.DefaultLLMTimeout + 6*core.DefaultSearchTimeout + core.PersistTimeout + responseSlack,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, writeTimeout(tt.cfg))
		})
	}
}

func TestWriteTimeoutCoversEverySearchAttempt(t *testing.T) {
	cfg := config.Config{LLMTimeout: 30 * time.Second, SearchTimeout: 30 * time.Second, SearchMaxAttempts: 5}
	worstCase := cfg.LLMTimeout + time.Duration(2*cfg.SearchMaxAttempts)*cfg.SearchTimeout + core.PersistTimeout

	assert.Greater(t, writeTimeout(cfg), worstCase)
}
