package config

import (
	"runtime"
	"time"

	"github.com/MRamiBalles/factorysim/internal/engine"
)

// Default returns sensible defaults for production.
func Default() *Config {
	numCPU := runtime.NumCPU()
	s := engine.DefaultSettings()

	return &Config{
		Simulation: SimulationConfig{
			CraftingInterval:         s.CraftingInterval,
			ProductionInterval:       s.ProductionInterval,
			ResearchInterval:         s.ResearchInterval,
			AutosaveInterval:         s.AutosaveInterval,
			DataCheckInterval:        s.DataCheckInterval,
			FrameInterval:            16 * time.Millisecond, // ~60 fps host loop
			ManualCraftingEfficiency: s.ManualCraftingEfficiency,
			MaxQueueLength:           s.MaxQueueLength,
			RefuelTargetUnits:        s.RefuelTargetUnits,
			LowFuelThreshold:         s.LowFuelThreshold,
			MaxEvents:                4096,
			GameID:                   "default",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "data/factorysim.db",
			Pool: PoolConfig{
				MaxOpen:     numCPU * 4, // 4 connections per CPU
				MaxIdle:     numCPU * 2, // Keep half warm
				MaxLifetime: 5 * time.Minute,
			},
		},
		Server: ServerConfig{
			Address:          ":8080",
			SnapshotInterval: time.Second,
			EventPoll:        100 * time.Millisecond,
			ClientSendBuffer: 64,
			ActionsPerSecond: 20,
			ActionBurst:      40,
			MaxClients:       200,
			ShutdownTimeout:  10 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Output: "stdout"},
	}
}

// Stress returns aggressive settings for load testing with loadgen.
func Stress() *Config {
	numCPU := runtime.NumCPU()
	c := Default()

	c.Simulation.MaxQueueLength = 1000
	c.Simulation.MaxEvents = 65536
	c.Database.Pool.MaxOpen = numCPU * 8
	c.Database.Pool.MaxIdle = numCPU * 4
	c.Server.ClientSendBuffer = 256
	c.Server.ActionsPerSecond = 500
	c.Server.ActionBurst = 1000
	c.Server.MaxClients = 1000
	c.Logging.Level = "warn"
	return c
}

// LowResource returns minimal settings for development.
func LowResource() *Config {
	c := Default()

	c.Simulation.FrameInterval = 50 * time.Millisecond
	c.Simulation.MaxEvents = 256
	c.Database.Pool.MaxOpen = 5
	c.Database.Pool.MaxIdle = 2
	c.Server.ClientSendBuffer = 8
	c.Server.ActionsPerSecond = 5
	c.Server.ActionBurst = 10
	c.Server.MaxClients = 20
	c.Metrics.Enabled = false
	c.Logging.Level = "debug"
	return c
}

// Profile returns the named profile, or false for an unknown name.
func Profile(name string) (*Config, bool) {
	switch name {
	case "", "default":
		return Default(), true
	case "stress":
		return Stress(), true
	case "low", "low-resource":
		return LowResource(), true
	}
	return nil, false
}
