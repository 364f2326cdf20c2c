// Package events fans download progress out to any number of listeners
// (the window, the terminal renderer, tests) through a topic bus.
package events

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/ytget/video-downloader/internal/model"
)

// Topics
const (
	TopicProgress     = "download:progress"
	TopicStatus       = "download:status"
	TopicDone         = "download:done"
	TopicPlaylistItem = "playlist:item"
)

// StatusEvent reports a task status transition
type StatusEvent struct {
	TaskID  string
	Status  model.TaskStatus
	Attempt int
	Err     error
}

// DoneEvent reports the final state of a task
type DoneEvent struct {
	Task model.DownloadTask
	Err  error
}

// PlaylistItemEvent reports progress through a playlist
type PlaylistItemEvent struct {
	PlaylistID string
	Video      model.PlaylistVideo
	Total      int
}

// Bus is a typed wrapper over an EventBus instance
type Bus struct {
	bus evbus.Bus
}

// New creates an empty bus
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// PublishProgress publishes a progress snapshot
func (b *Bus) PublishProgress(p model.Progress) {
	b.bus.Publish(TopicProgress, p)
}

// PublishStatus publishes a status transition
func (b *Bus) PublishStatus(e StatusEvent) {
	b.bus.Publish(TopicStatus, e)
}

// PublishDone publishes the end of a task
func (b *Bus) PublishDone(e DoneEvent) {
	b.bus.Publish(TopicDone, e)
}

// PublishPlaylistItem publishes a playlist entry change
func (b *Bus) PublishPlaylistItem(e PlaylistItemEvent) {
	b.bus.Publish(TopicPlaylistItem, e)
}

// OnProgress subscribes fn to progress snapshots and returns an unsubscribe func
func (b *Bus) OnProgress(fn func(model.Progress)) (func(), error) {
	return b.subscribe(TopicProgress, fn)
}

// OnStatus subscribes fn to status transitions
func (b *Bus) OnStatus(fn func(StatusEvent)) (func(), error) {
	return b.subscribe(TopicStatus, fn)
}

// OnDone subscribes fn to finished tasks
func (b *Bus) OnDone(fn func(DoneEvent)) (func(), error) {
	return b.subscribe(TopicDone, fn)
}

// OnPlaylistItem subscribes fn to playlist entry changes
func (b *Bus) OnPlaylistItem(fn func(PlaylistItemEvent)) (func(), error) {
	return b.subscribe(TopicPlaylistItem, fn)
}

func (b *Bus) subscribe(topic string, fn any) (func(), error) {
	if err := b.bus.Subscribe(topic, fn); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(topic, fn) }, nil
}
