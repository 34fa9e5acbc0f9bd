package main

import (
	"testing"
	"time"

	"github.com/ngeltman/music-pitch-app/config"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &config.Config{
				Audio: config.AudioConfig{
					SampleRate:      44100,
					BufferDuration:  100 * time.Millisecond,
					ResampleQuality: 4,
				},
				Resolver: config.ResolverConfig{
					BaseURL: "https://resolver.local",
					Timeout: 15 * time.Second,
				},
				Logging: config.LoggingConfig{
					Level:  "info",
					Format: "text",
				},
			},
			wantErr: false,
		},
		{
			name: "valid without resolver",
			config: &config.Config{
				Audio: config.AudioConfig{
					SampleRate:      48000,
					BufferDuration:  50 * time.Millisecond,
					ResampleQuality: 3,
				},
			},
			wantErr: false,
		},
		{
			name: "zero sample rate",
			config: &config.Config{
				Audio: config.AudioConfig{
					BufferDuration:  100 * time.Millisecond,
					ResampleQuality: 4,
				},
			},
			wantErr: true,
		},
		{
			name: "missing buffer duration",
			config: &config.Config{
				Audio: config.AudioConfig{
					SampleRate:      44100,
					ResampleQuality: 4,
				},
			},
			wantErr: true,
		},
		{
			name: "resample quality out of range",
			config: &config.Config{
				Audio: config.AudioConfig{
					SampleRate:      44100,
					BufferDuration:  100 * time.Millisecond,
					ResampleQuality: 100,
				},
			},
			wantErr: true,
		},
		{
			name: "malformed resolver URL",
			config: &config.Config{
				Audio: config.AudioConfig{
					SampleRate:      44100,
					BufferDuration:  100 * time.Millisecond,
					ResampleQuality: 4,
				},
				Resolver: config.ResolverConfig{
					BaseURL: "::not-a-url",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
