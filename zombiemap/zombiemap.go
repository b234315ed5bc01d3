// Package zombiemap holds the small, mostly-data record types that
// describe a map's player-upgrade and spawnpoint configuration. They are
// decoded from config data (via the loader package) once per map load,
// then serialized with msgpack whenever a running server persists or
// replicates the derived runtime state.
package zombiemap

import "github.com/phantazm/commons/loader"

// PlayerUpgradeInfo associates a player upgrade's identifier with its
// arbitrary, upgrade-specific config data.
type PlayerUpgradeInfo struct {
	ID   string        `msgpack:"id"`
	Data loader.Element `msgpack:"data"`
}

// Vec3I is an integer 3D position, the block-grid coordinate type used
// throughout map config.
type Vec3I struct {
	X int32 `msgpack:"x"`
	Y int32 `msgpack:"y"`
	Z int32 `msgpack:"z"`
}

// SpawnpointInfo defines where and how a mob or player may spawn.
type SpawnpointInfo struct {
	Position Vec3I  `msgpack:"position"`
	SpawnRule string `msgpack:"spawn_rule"`

	// LinkToWindow, when true, tries to associate this spawnpoint with
	// the nearest window rather than spawning in the open.
	LinkToWindow bool `msgpack:"link_to_window"`

	// LinkedWindowPosition pins the link to a specific window instead of
	// the nearest one. Nil means "nearest".
	LinkedWindowPosition *Vec3I `msgpack:"linked_window_position"`
}

// DefaultSpawnpointInfo returns a SpawnpointInfo with the defaults
// config decoding falls back to when a map omits the optional fields:
// linked to the nearest window, with no specific window pinned.
func DefaultSpawnpointInfo(position Vec3I, spawnRule string) SpawnpointInfo {
	return SpawnpointInfo{
		Position:     position,
		SpawnRule:    spawnRule,
		LinkToWindow: true,
	}
}
