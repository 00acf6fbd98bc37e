package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarkhoj/bazarkhoj/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "bazarkhoj", cfg.App.Name)
	assert.Equal(t, config.DefaultServerAddress, cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, config.DefaultSourceTimeout, cfg.Aggregator.SourceTimeout)
	assert.Equal(t, config.DefaultSearchLimit, cfg.Aggregator.DefaultLimit)
	assert.Equal(t, "np", cfg.Aggregator.DefaultRegion)
	assert.Equal(t, "https://www.daraz.com.np", cfg.Daraz.BaseURLs["np"])
	assert.Equal(t, "https://api.jeevee.com", cfg.Jeevee.APIURL)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("logger.level", "debug")
	viper.Set("aggregator.source_timeout", "3s")
	viper.Set("aggregator.default_region", "pk")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "3s", cfg.Aggregator.SourceTimeout.String())
	assert.Equal(t, "pk", cfg.Aggregator.DefaultRegion)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr string
	}{
		{
			name:    "invalid log level",
			key:     "logger.level",
			value:   "verbose",
			wantErr: "logger.level",
		},
		{
			name:    "invalid encoding",
			key:     "logger.encoding",
			value:   "xml",
			wantErr: "logger.encoding",
		},
		{
			name:    "unknown default region",
			key:     "aggregator.default_region",
			value:   "xx",
			wantErr: "default_region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set(tt.key, tt.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaxLimitBelowDefaultLimitRejected(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("aggregator.default_limit", 50)
	viper.Set("aggregator.max_limit", 10)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_limit")
}
