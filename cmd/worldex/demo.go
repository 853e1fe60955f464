package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/najoast/worldex/bootstrap"
	"github.com/najoast/worldex/config"
	"github.com/najoast/worldex/core"
	"github.com/najoast/worldex/world"
)

const (
	filesystemWorld = "filesystem"
	gameWorld       = "game"
	renderWorld     = "render"
)

// Demo components.

type settings struct {
	Map      string
	TickRate int
}

func (settings) ComponentName() string { return "settings" }

type mapSource struct {
	Name    string
	Brushes []string
}

func (mapSource) ComponentName() string { return "map_source" }

func (m mapSource) CloneComponent() world.Component {
	return mapSource{Name: m.Name, Brushes: append([]string(nil), m.Brushes...)}
}

type meshes struct {
	IDs []int
}

func (meshes) ComponentName() string { return "meshes" }

func (m meshes) CloneComponent() world.Component {
	return meshes{IDs: append([]int(nil), m.IDs...)}
}

type doorKey string

func (doorKey) ComponentName() string { return "door_key" }

type doorOpen bool

func (doorOpen) ComponentName() string { return "door_open" }

type handshake string

func (handshake) ComponentName() string { return "handshake" }

func demoSchema() *world.Schema {
	return world.NewSchema().
		MustRegister(settings{}, world.Copy).
		MustRegister(mapSource{}, world.Clone).
		MustRegister(meshes{}, world.Clone).
		MustRegister(doorKey(""), world.Copy|world.Key).
		MustRegister(doorOpen(false), world.Copy|world.Move).
		MustRegister(handshake(""), world.Copy)
}

// demoWorlds is used when the configuration names no worlds.
func demoWorlds() []config.WorldConfig {
	return []config.WorldConfig{
		{Name: filesystemWorld, Mode: config.ModeBlocking},
		{Name: gameWorld, Mode: config.ModePolling, TickInterval: 16 * time.Millisecond},
		{Name: renderWorld, Mode: config.ModePolling, TickInterval: 16 * time.Millisecond},
	}
}

// demo holds the entity ids the worlds agree on during setup. Every setup
// runs before any worker starts; afterwards each field below the ids is
// touched only by its own world's worker.
type demo struct {
	logger  *zap.Logger
	schema  *world.Schema
	mapName string

	settingsEntity world.Entity
	mapEntity      world.Entity
	renderDoor     world.Entity

	// game worker state
	settingsRequested bool
	settings          settings
	doorMoved         bool
	settingsSeen      bool
	handshakeSeen     bool

	// render worker state
	doorSeen bool
}

// newDemo reads the map to load from the "map" key of the custom config
// section and falls back to e1m1.
func newDemo(logger *zap.Logger, custom map[string]interface{}) *demo {
	mapName := "e1m1"
	if name, ok := custom["map"].(string); ok && name != "" {
		mapName = name
	}
	return &demo{
		logger:  logger.Named("demo"),
		schema:  demoSchema(),
		mapName: mapName,
	}
}

func (d *demo) specs() map[string]bootstrap.WorldSpec {
	return map[string]bootstrap.WorldSpec{
		filesystemWorld: {
			Schema:   d.schema,
			Setup:    d.setupFilesystem,
			Teardown: d.teardown,
		},
		gameWorld: {
			Schema:   d.schema,
			Setup:    d.setupGame,
			Tick:     d.tickGame,
			Teardown: d.teardown,
		},
		renderWorld: {
			Schema:   d.schema,
			Setup:    d.setupRender,
			Tick:     d.tickRender,
			Teardown: d.teardown,
		},
	}
}

// setupFilesystem loads the map and ships a clone of it to the render world.
func (d *demo) setupFilesystem(w *world.World, ch *core.Channel) error {
	d.settingsEntity = w.Spawn(settings{Map: d.mapName, TickRate: 60})
	d.mapEntity = w.Spawn(mapSource{
		Name:    d.mapName,
		Brushes: []string{"floor", "north_wall", "south_wall", "door_frame"},
	})

	return ch.Send(core.CloneFrom(filesystemWorld, d.mapEntity, renderWorld, "map_source"))
}

// setupGame spawns the door and greets the filesystem. The settings are
// requested from the first tick, once every world has been set up.
func (d *demo) setupGame(w *world.World, ch *core.Channel) error {
	w.Spawn(doorKey("door_1"), doorOpen(true))

	return ch.Send(core.RoundTrip(filesystemWorld, core.Spawn{
		Bundle: world.Bundle{handshake(filesystemWorld)},
	}))
}

func (d *demo) setupRender(w *world.World, ch *core.Channel) error {
	d.renderDoor = w.Spawn(doorKey("door_1"))
	return nil
}

// tickGame moves the door state to render once the meshes have arrived.
func (d *demo) tickGame(ctx context.Context, w *world.World, ch *core.Channel) error {
	if !d.settingsRequested {
		d.settingsRequested = true
		if err := ch.Send(core.CopyFrom(filesystemWorld, d.settingsEntity, "settings", gameWorld)); err != nil {
			return err
		}
	}

	if !d.settingsSeen {
		for _, e := range w.Query("settings") {
			s, _ := w.Get(e, "settings")
			d.settings = s.(settings)
			d.logger.Info("game received settings", zap.Any("settings", d.settings))
			d.settingsSeen = true
		}
	}

	if !d.handshakeSeen && len(w.Query("handshake")) > 0 {
		d.logger.Info("filesystem answered the game handshake")
		d.handshakeSeen = true
	}

	if d.doorMoved || len(w.Query("meshes")) == 0 {
		return nil
	}

	d.doorMoved = true
	d.logger.Info("game hands the door state to render", zap.Stringer("target", d.renderDoor))
	return ch.Send(core.MoveFrom(gameWorld, doorKey("door_1"), "door_open", d.renderDoor, renderWorld))
}

// tickRender builds meshes for every loaded map and clones them to game.
func (d *demo) tickRender(ctx context.Context, w *world.World, ch *core.Channel) error {
	for _, e := range w.Query("map_source") {
		if w.Has(e, "meshes") {
			continue
		}

		c, _ := w.Get(e, "map_source")
		src := c.(mapSource)

		ids := make([]int, len(src.Brushes))
		for i := range ids {
			ids[i] = i
		}
		if err := w.Insert(e, meshes{IDs: ids}); err != nil {
			return err
		}

		d.logger.Info("render built meshes", zap.String("map", src.Name), zap.Ints("ids", ids))
		if err := ch.Send(core.CloneFrom(renderWorld, e, gameWorld, "meshes")); err != nil {
			return err
		}
	}

	if !d.doorSeen {
		if open, ok := w.Get(d.renderDoor, "door_open"); ok {
			d.doorSeen = true
			d.logger.Info("render received the door state", zap.Bool("open", bool(open.(doorOpen))))
		}
	}
	return nil
}

func (d *demo) teardown(w *world.World) {
	d.logger.Info("world stopped",
		zap.String("world", w.Name()),
		zap.Int("entities", w.Len()),
	)
}

func (d *demo) onFailure(err *core.RoutingError) {
	d.logger.Warn("message dropped", zap.Error(err), zap.String("reason", string(err.Reason)))
}
