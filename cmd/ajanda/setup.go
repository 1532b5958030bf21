package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/hrygo/ajanda/ai"
	"github.com/hrygo/ajanda/dialog"
	"github.com/hrygo/ajanda/events"
	"github.com/hrygo/ajanda/internal/profile"
	"github.com/hrygo/ajanda/internal/version"
	"github.com/hrygo/ajanda/nlu"
	"github.com/hrygo/ajanda/policy"
	"github.com/hrygo/ajanda/store"
	"github.com/hrygo/ajanda/store/db/sqlite"
	"github.com/hrygo/ajanda/tools"
)

// runtime bundles the wired application: profile, storage and the dialog
// engine.
type runtime struct {
	profile *profile.Profile
	driver  store.Driver
	engine  *dialog.Orchestrator
	loc     *time.Location
}

// buildRuntime assembles the full assistant from flags and environment.
func buildRuntime() (*runtime, error) {
	instanceProfile := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	instanceProfile.FromEnv()
	instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(instanceProfile.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, falling back to UTC", "timezone", instanceProfile.Timezone)
		loc = time.UTC
	}

	driver, err := sqlite.NewDB(instanceProfile)
	if err != nil {
		return nil, err
	}
	if err := driver.Migrate(context.Background()); err != nil {
		_ = driver.Close()
		return nil, err
	}

	registry := tools.NewRegistry(tools.NewCalendarTools(driver.ScheduleStore())...)

	riskPolicy, err := policy.NewEngine(policy.DefaultRules(), slog.Default())
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	bus := events.NewBus(slog.Default())
	bus.SubscribeAll(func(event events.Event) error {
		slog.Debug("dialog event", "type", event.Type, "source", event.Source)
		return nil
	})

	opts := []dialog.Option{
		dialog.WithPolicy(riskPolicy),
		dialog.WithBus(bus),
		dialog.WithMaxSteps(instanceProfile.MaxSteps),
		dialog.WithLogger(slog.Default()),
	}
	if instanceProfile.IsAIEnabled() {
		client, err := ai.NewClient(ai.ConfigFromProfile(instanceProfile), slog.Default())
		if err != nil {
			_ = driver.Close()
			return nil, err
		}
		opts = append(opts,
			dialog.WithCompletionClient(client),
			dialog.WithClassifier(ai.NewClassifier(client)),
			dialog.WithPlanBuilder(ai.NewPlanner(client)),
		)
	}

	engine := dialog.New(registry, nlu.New(), opts...)

	return &runtime{
		profile: instanceProfile,
		driver:  driver,
		engine:  engine,
		loc:     loc,
	}, nil
}

// turnContext builds the per-turn environment; day windows follow the clock.
func (rt *runtime) turnContext() dialog.TurnContext {
	return dialog.TurnContext{
		DeterministicRender: rt.profile.DeterministicRender,
		Windows:             nlu.DefaultWindows(time.Now(), rt.loc),
		TZName:              rt.profile.Timezone,
		EnablePlanner:       rt.profile.EnablePlanner,
	}
}

func (rt *runtime) Close() {
	if err := rt.driver.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}
