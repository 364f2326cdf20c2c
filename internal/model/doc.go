package model

// Package model holds the data shared by the engine, the service and both
// front-ends: download tasks, progress snapshots, playlists and status enums.
// Values are plain structs so the UI can render them without extra mapping.
